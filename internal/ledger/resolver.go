package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// ResolutionSource tags how an account was bound to a role.
type ResolutionSource string

const (
	SourceOverride   ResolutionSource = "override"
	SourceMapping    ResolutionSource = "mapping"
	SourceHeuristic  ResolutionSource = "heuristic"
	SourceNatureOnly ResolutionSource = "nature-only"
)

// Resolution is the outcome of binding a role to a concrete account.
// NatureOnly results matched nothing but the role's nature and are
// low-confidence: the caller decides whether to accept them.
type Resolution struct {
	Account Account
	Source  ResolutionSource
}

// LowConfidence reports whether the binding rests on nature alone.
func (r Resolution) LowConfidence() bool { return r.Source == SourceNatureOnly }

// CorrectionRecorder persists a self-healed role mapping. The mutation is an
// explicit injected capability so simulation can discard it and tests can
// observe it.
type CorrectionRecorder interface {
	RecordCorrection(ctx context.Context, companyID int64, role Role, accountID int64, autoCreated bool) error
}

// DiscardCorrections is a CorrectionRecorder that drops every write; used by
// Simulate, which must have zero side effects.
type DiscardCorrections struct{}

// RecordCorrection drops the correction.
func (DiscardCorrections) RecordCorrection(context.Context, int64, Role, int64, bool) error {
	return nil
}

// Resolver binds abstract account roles to a company's concrete chart of
// accounts, healing missing or nature-invalid mappings along the way.
type Resolver struct {
	// RequireConfidentMatch rejects nature-only fallback results instead of
	// returning them flagged as low confidence.
	RequireConfidentMatch bool
}

const natureMismatchPenalty = 1000

// Heuristic score weights, strongest evidence first.
const (
	scoreExactCode   = 100
	scorePrefixCode  = 60
	scoreExactName   = 50
	scoreNameSubstr  = 25
	scoreNatureMatch = 10
)

// Resolve binds role to an account for companyID. Precedence: operation
// override, then the active (company, role) mapping, then the code/name
// heuristic over active accounts. A heuristic hit is written back through
// rec inside the caller's transaction so a later failure rolls it back.
func (rv *Resolver) Resolve(ctx context.Context, tx TxRepository, rec CorrectionRecorder, companyID int64, role Role, op OperationData) (Resolution, error) {
	wantNature, known := RoleNature(role)
	if !known {
		return Resolution{}, fmt.Errorf("ledger: unknown role %q", role)
	}

	if RoleAllowsOverride(role) {
		if code, ok := op.Text("account_code:" + strings.ToLower(string(role))); ok && code != "" {
			account, err := tx.AccountByCode(ctx, companyID, code)
			if err != nil && !errors.Is(err, ErrAccountNotFound) {
				return Resolution{}, err
			}
			if err == nil && account.IsActive {
				return Resolution{Account: account, Source: SourceOverride}, nil
			}
		}
	}

	mapping, err := tx.RoleMapping(ctx, companyID, role)
	switch {
	case err == nil:
		account, err := tx.AccountByID(ctx, mapping.AccountID)
		if err != nil {
			return Resolution{}, err
		}
		if account.Nature == wantNature {
			return Resolution{Account: account, Source: SourceMapping}, nil
		}
		// Nature-invalid mapping: one shot at auto-correction.
		healed, herr := rv.fallback(ctx, tx, rec, companyID, role, wantNature)
		if herr != nil {
			if errors.Is(herr, ErrUnmappedRole) {
				return Resolution{}, &InvalidMappingError{
					CompanyID:   companyID,
					Role:        role,
					AccountCode: account.Code,
					WantNature:  wantNature,
					GotNature:   account.Nature,
				}
			}
			return Resolution{}, herr
		}
		return healed, nil
	case errors.Is(err, ErrMappingNotFound):
		return rv.fallback(ctx, tx, rec, companyID, role, wantNature)
	default:
		return Resolution{}, err
	}
}

// fallback scores every active account and self-heals the mapping with the
// winner. Ties keep the first account in code order.
func (rv *Resolver) fallback(ctx context.Context, tx TxRepository, rec CorrectionRecorder, companyID int64, role Role, wantNature Nature) (Resolution, error) {
	accounts, err := tx.ListActiveAccounts(ctx, companyID)
	if err != nil {
		return Resolution{}, err
	}

	var best *Account
	bestScore := 0
	bestConfident := false
	for i := range accounts {
		score, confident := scoreCandidate(&accounts[i], role, wantNature)
		if score > bestScore {
			best = &accounts[i]
			bestScore = score
			bestConfident = confident
		}
	}
	if best == nil {
		return Resolution{}, &UnmappedRoleError{CompanyID: companyID, Role: role}
	}

	source := SourceHeuristic
	if !bestConfident {
		if rv.RequireConfidentMatch {
			return Resolution{}, &UnmappedRoleError{CompanyID: companyID, Role: role}
		}
		source = SourceNatureOnly
	}
	if err := rec.RecordCorrection(ctx, companyID, role, best.ID, true); err != nil {
		return Resolution{}, err
	}
	return Resolution{Account: *best, Source: source}, nil
}

// scoreCandidate accumulates heuristic evidence that account fits role.
// confident is false when only the nature matched.
func scoreCandidate(account *Account, role Role, wantNature Nature) (score int, confident bool) {
	for _, code := range roleCandidateCodes[role] {
		if account.Code == code {
			score += scoreExactCode
			confident = true
		} else if codePrefixMatch(account.Code, code) {
			score += scorePrefixCode
			confident = true
		}
	}
	folded := foldName(account.Name)
	for _, name := range roleSearchNames[role] {
		if folded == name {
			score += scoreExactName
			confident = true
		} else if strings.Contains(folded, name) {
			score += scoreNameSubstr
			confident = true
		}
	}
	if account.Nature == wantNature {
		score += scoreNatureMatch
	} else {
		score -= natureMismatchPenalty
	}
	return score, confident
}

// codePrefixMatch reports whether code extends prefix at a segment boundary.
// A '.' always opens a new segment, so "10.1" matches "10.1.2" but not
// "10.15". Digit continuations count only for dotless class codes, so "42"
// matches both "42.1" and "421".
func codePrefixMatch(code, prefix string) bool {
	if !strings.HasPrefix(code, prefix) || len(code) == len(prefix) {
		return false
	}
	next := rune(code[len(prefix)])
	if next == '.' {
		return true
	}
	return unicode.IsDigit(next) && !strings.ContainsRune(prefix, '.')
}

var nameFolder = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// foldName lowercases and strips diacritics so "Créditos" matches "creditos".
func foldName(name string) string {
	folded, _, err := transform.String(nameFolder, name)
	if err != nil {
		folded = name
	}
	return strings.ToLower(strings.TrimSpace(folded))
}
