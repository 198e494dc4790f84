package dossier

import "errors"

var (
	ErrDossierNotFound  = errors.New("dossier not found")
	ErrDocumentNotFound = errors.New("document not found")
)
