package vpack

import (
	"github.com/vpackhq/vpack-go/internal/modelregistry"
	"github.com/vpackhq/vpack-go/internal/vpkerr"
)

// FormatError renders err as the "{CODE}|{message}" string a foreign
// function boundary expects. Non-engine errors render with an empty code.
func FormatError(err error) string {
	return vpkerr.FormatHostError(err)
}

// VerifyModelIdentity checks a query-time (model, modelHash) pair against
// whatever was bound for packName in reg. Model-identity enforcement is a
// host-boundary concern, never something pkg/vpack.Index.Query itself
// checks. Call this once per host-facing query entry point, before or
// after Index.Query — the two checks are independent.
//
// A packName with no recorded binding passes verification; callers that
// require every pack be bound should check reg.Lookup themselves first.
func VerifyModelIdentity(reg *modelregistry.Registry, packName, model, modelHash string) error {
	return reg.Verify(packName, model, modelHash)
}

// BindModelIdentity records the model and model-hash a pack was built
// with, for later VerifyModelIdentity calls.
func BindModelIdentity(reg *modelregistry.Registry, packName, model, modelHash string) error {
	return reg.Bind(packName, model, modelHash)
}
