package services

import "github.com/dmitrijs2005/credkeeper/internal/server/models"

// credentialPatch hashes password into a fresh modern credential and nulls
// the legacy clear-text column. The fast-path column is written only when
// the compatibility switch is on and is cleared otherwise.
func credentialPatch(d Deps, password string) models.UserPatch {
	cred := models.ModernCredential(d.Hasher.Hash(password), d.Clock.Now())
	patch := models.UserPatch{Credential: &cred, ClearLegacyPlaintext: true}
	if d.WriteFastPathSecret {
		patch.FastPathSecret = &password
	} else {
		patch.ClearFastPath = true
	}
	return patch
}
