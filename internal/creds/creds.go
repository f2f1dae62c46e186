// Package creds resolves access tokens for forge backends. The OS
// keyring itself is an external collaborator; this package only defines
// the lookup contract and the environment-variable fallback (keyring
// first, env var second). The core receives nothing but the token
// string.
package creds

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/forgesync/frg/internal/ferrors"
	"github.com/forgesync/frg/internal/types"
)

// EnvVar returns the fallback environment variable for a forge kind:
// FRG_REST_FORGE_TOKEN and FRG_GRAPHQL_FORGE_TOKEN.
func EnvVar(kind types.ForgeKind) string {
	name := strings.ToUpper(strings.ReplaceAll(string(kind), "-", "_"))
	return "FRG_" + name + "_TOKEN"
}

// Keyring is the narrow surface the core needs from the external
// credential store. Get returns "" (not an error) when no entry exists.
type Keyring interface {
	Get(kind types.ForgeKind) (string, error)
}

// Resolver looks tokens up in the keyring, then in the environment.
type Resolver struct {
	// Keyring may be nil, in which case only the environment is consulted.
	Keyring Keyring
}

// Token resolves the access token for kind, or ErrNotAuthenticated when
// neither the keyring nor the environment yields one.
func (r *Resolver) Token(kind types.ForgeKind) (string, error) {
	if r.Keyring != nil {
		token, err := r.Keyring.Get(kind)
		if err != nil {
			return "", fmt.Errorf("keyring lookup for %s: %w", kind, err)
		}
		if token != "" {
			return token, nil
		}
	}
	if token := os.Getenv(EnvVar(kind)); token != "" {
		return token, nil
	}
	return "", ferrors.Wrap(fmt.Sprintf("no token for %s (set %s)", kind, EnvVar(kind)), ferrors.ErrNotAuthenticated, nil)
}

// Ready reports whether a token is resolvable for kind, for the status
// command's per-forge auth readiness line.
func (r *Resolver) Ready(kind types.ForgeKind) bool {
	_, err := r.Token(kind)
	return err == nil
}

// Credential is the serialized shape stored by the external keyring
// collaborator. Serialization round-trips exactly.
type Credential struct {
	ForgeKind types.ForgeKind `json:"forge_kind"`
	Token     string          `json:"token"`
}

// Serialize encodes c for keyring storage.
func Serialize(c Credential) ([]byte, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("serialize credential: %w", err)
	}
	return data, nil
}

// Deserialize decodes keyring data back into a Credential. Malformed
// data surfaces as ErrMalformed.
func Deserialize(data []byte) (Credential, error) {
	var c Credential
	if err := json.Unmarshal(data, &c); err != nil {
		return Credential{}, ferrors.Wrap("deserialize credential", ferrors.ErrMalformed, err)
	}
	return c, nil
}
