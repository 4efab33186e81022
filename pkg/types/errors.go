package types

import "errors"

var (
	// ErrAlreadyStopped is returned by a container controller when the
	// container was not running.
	ErrAlreadyStopped = errors.New("container já está parado")

	ErrSizeMismatch          = errors.New("tamanho do rootfs difere entre origem e destino")
	ErrVerificationExhausted = errors.New("tentativas de verificação esgotadas")
	ErrInvalidContainerName  = errors.New("nome de container inválido")

	// ErrSSHKeyNotInAgent means rsync's ssh, which runs in batch mode, has
	// no way to use a passphrase-protected key.
	ErrSSHKeyNotInAgent = errors.New("chave SSH protegida por senha não está carregada no ssh-agent")

	// ErrContainersFailed marks a run in which at least one container did
	// not migrate successfully.
	ErrContainersFailed = errors.New("um ou mais containers falharam na migração")
)
