package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// readContainerList returns one entry per line, trimmed. Blank lines are
// kept as empty entries; the runner skips them and reports how many.
func readContainerList(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler lista de containers %s: %w", path, err)
	}
	return lines, nil
}

// readExcludePatterns returns the non-empty lines of path in file order.
func readExcludePatterns(path string) ([]string, error) {
	lines, err := readLines(path)
	if err != nil {
		return nil, fmt.Errorf("falha ao ler arquivo de exclusões %s: %w", path, err)
	}

	patterns := make([]string, 0, len(lines))
	for _, line := range lines {
		if line != "" {
			patterns = append(patterns, line)
		}
	}
	return patterns, nil
}

func readLines(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, strings.TrimSpace(scanner.Text()))
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}
