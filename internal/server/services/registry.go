package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/credkeeper/internal/common"
	"github.com/dmitrijs2005/credkeeper/internal/server/events"
	"github.com/dmitrijs2005/credkeeper/internal/server/models"
	"github.com/dmitrijs2005/credkeeper/internal/server/repositories/repomanager"
	"github.com/google/uuid"
)

const (
	codeAlphabet      = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	codeSegments      = 3
	codeSegmentLength = 3
)

// DefaultCodeValidity is the lifetime of a code, in hours.
const DefaultCodeValidity = 24

// IssueRequest describes a code to mint. Zero ValidityHours means
// DefaultCodeValidity; empty UserLevel means common.DefaultUserLevel.
type IssueRequest struct {
	AdminID       string
	TargetEmail   *string
	ValidityHours int
	CompanyID     *string
	SectorID      *string
	UserLevel     string
}

// Validation is the scope carried by a redeemable code.
type Validation struct {
	ID          string
	Code        string
	TargetEmail *string
	CompanyID   *string
	SectorID    *string
	UserLevel   string
}

// ActiveCode is a non-consumed code as listed for admins.
type ActiveCode struct {
	models.ResetCode
	Expired          bool
	MinutesRemaining int64
}

// AccountRequest asks to create an account with an account-creation code.
type AccountRequest struct {
	Name     string
	Email    string
	Password string
	Code     string
}

// AccountDraft is a validated account ready to be written. Credential
// already holds the hashed password.
type AccountDraft struct {
	CodeID     string
	Name       string
	Email      string
	Credential models.Credential
	CompanyID  *string
	SectorID   *string
	UserLevel  string
}

// ResetCodeRegistry issues, validates and consumes admin reset codes.
type ResetCodeRegistry struct {
	runner repomanager.Runner
	deps   Deps
}

func NewResetCodeRegistry(runner repomanager.Runner, deps Deps) *ResetCodeRegistry {
	return &ResetCodeRegistry{runner: runner, deps: deps.withDefaults("reset_codes")}
}

// NormalizeCode upper-cases and trims a code as typed by a user.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// generateCode draws XXX-XXX-XXX from codeAlphabet. Bytes at or above the
// largest multiple of the alphabet size are rejected to keep the draw
// uniform.
func generateCode(random io.Reader) (string, error) {
	const limit = 256 - 256%len(codeAlphabet)

	var sb strings.Builder
	buf := make([]byte, 1)
	for i := 0; i < codeSegments*codeSegmentLength; {
		if _, err := io.ReadFull(random, buf); err != nil {
			return "", fmt.Errorf("generate code: %w", err)
		}
		if int(buf[0]) >= limit {
			continue
		}
		if i > 0 && i%codeSegmentLength == 0 {
			sb.WriteByte('-')
		}
		sb.WriteByte(codeAlphabet[int(buf[0])%len(codeAlphabet)])
		i++
	}
	return sb.String(), nil
}

func (r *ResetCodeRegistry) Issue(ctx context.Context, req IssueRequest) (*models.ResetCode, error) {
	if strings.TrimSpace(req.AdminID) == "" {
		return nil, &ValidationError{Field: "admin", Code: "required", Message: "issuing admin is required"}
	}
	hours := req.ValidityHours
	if hours == 0 {
		hours = DefaultCodeValidity
	}
	if hours < 0 {
		return nil, &ValidationError{Field: "validity", Code: "positive", Message: "validity must be positive"}
	}
	level := req.UserLevel
	if level == "" {
		level = common.DefaultUserLevel
	}

	code, err := generateCode(r.deps.Random)
	if err != nil {
		return nil, err
	}

	now := r.deps.Clock.Now()
	rc := &models.ResetCode{
		ID:          uuid.NewString(),
		Code:        code,
		TargetEmail: req.TargetEmail,
		IssuedBy:    req.AdminID,
		IssuedAt:    now,
		ExpiresAt:   now.Add(time.Duration(hours) * time.Hour),
		CompanyID:   req.CompanyID,
		SectorID:    req.SectorID,
		UserLevel:   level,
	}

	if err := r.runner.Unit().ResetCodes.Create(ctx, rc); err != nil {
		return nil, storeError("create reset code", err)
	}

	r.deps.Metrics.ResetCodeEvent("issued", 1)
	r.deps.publish(ctx, events.CodeIssued, map[string]string{
		"code_id": rc.ID, "issued_by": rc.IssuedBy, "generic": strconv.FormatBool(rc.TargetEmail == nil),
	})
	r.deps.Logger.Info(ctx, "reset code issued", "code_id", rc.ID, "expires_at", rc.ExpiresAt)
	return rc, nil
}

// Validate checks, in order: existence, expiry, prior use, ownership.
// An expired code reports ErrCodeExpired whether or not it was used.
func (r *ResetCodeRegistry) Validate(ctx context.Context, code, requesterEmail string) (*Validation, error) {
	return r.validate(ctx, r.runner.Unit(), code, requesterEmail)
}

func (r *ResetCodeRegistry) validate(ctx context.Context, u repomanager.Unit, code, requesterEmail string) (*Validation, error) {
	rc, err := u.ResetCodes.FindByCode(ctx, NormalizeCode(code))
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, r.reject(ctx, "", "not_found", ErrCodeNotFound)
		}
		return nil, storeError("find reset code", err)
	}

	switch {
	case rc.Expired(r.deps.Clock.Now()):
		return nil, r.reject(ctx, rc.ID, "expired", ErrCodeExpired)
	case rc.Used:
		return nil, r.reject(ctx, rc.ID, "already_used", ErrCodeAlreadyUsed)
	case rc.TargetEmail != nil && !strings.EqualFold(strings.TrimSpace(*rc.TargetEmail), strings.TrimSpace(requesterEmail)):
		return nil, r.reject(ctx, rc.ID, "wrong_owner", ErrCodeWrongOwner)
	}

	level := rc.UserLevel
	if level == "" {
		level = common.DefaultUserLevel
	}
	return &Validation{
		ID:          rc.ID,
		Code:        rc.Code,
		TargetEmail: rc.TargetEmail,
		CompanyID:   rc.CompanyID,
		SectorID:    rc.SectorID,
		UserLevel:   level,
	}, nil
}

func (r *ResetCodeRegistry) reject(ctx context.Context, codeID, reason string, err error) error {
	r.deps.Metrics.ResetCodeEvent("rejected_"+reason, 1)
	r.deps.Logger.Warn(ctx, "reset code rejected", "reason", reason, "code_id", codeID)
	return err
}

// Consume marks the code used. Only one caller can win; the rest get
// ErrCodeAlreadyUsed.
func (r *ResetCodeRegistry) Consume(ctx context.Context, codeID, usedByEmail string) error {
	return r.consume(ctx, r.runner.Unit(), codeID, usedByEmail)
}

func (r *ResetCodeRegistry) consume(ctx context.Context, u repomanager.Unit, codeID, usedByEmail string) error {
	err := u.ResetCodes.MarkUsed(ctx, codeID, usedByEmail, r.deps.Clock.Now())
	switch {
	case err == nil:
	case errors.Is(err, common.ErrConflict):
		return r.reject(ctx, codeID, "already_used", ErrCodeAlreadyUsed)
	case errors.Is(err, common.ErrorNotFound):
		return r.reject(ctx, codeID, "not_found", ErrCodeNotFound)
	default:
		return storeError("consume reset code", err)
	}

	r.deps.Metrics.ResetCodeEvent("consumed", 1)
	r.deps.publish(ctx, events.CodeConsumed, map[string]string{"code_id": codeID})
	return nil
}

// List returns every non-consumed code, newest first.
func (r *ResetCodeRegistry) List(ctx context.Context) ([]ActiveCode, error) {
	codes, err := r.runner.Unit().ResetCodes.ListUnused(ctx)
	if err != nil {
		return nil, storeError("list reset codes", err)
	}

	now := r.deps.Clock.Now()
	result := make([]ActiveCode, 0, len(codes))
	for _, c := range codes {
		ac := ActiveCode{ResetCode: *c, Expired: c.Expired(now)}
		if !ac.Expired {
			ac.MinutesRemaining = int64(c.ExpiresAt.Sub(now) / time.Minute)
		}
		result = append(result, ac)
	}
	return result, nil
}

// Revoke deletes a code whatever its state.
func (r *ResetCodeRegistry) Revoke(ctx context.Context, codeID string) error {
	if err := r.runner.Unit().ResetCodes.Delete(ctx, codeID); err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return common.ErrorNotFound
		}
		return storeError("revoke reset code", err)
	}

	r.deps.Metrics.ResetCodeEvent("revoked", 1)
	r.deps.publish(ctx, events.CodeRevoked, map[string]string{"code_id": codeID})
	r.deps.Logger.Info(ctx, "reset code revoked", "code_id", codeID)
	return nil
}

// SweepExpired deletes every code whose expiry is in the past.
func (r *ResetCodeRegistry) SweepExpired(ctx context.Context) (int64, error) {
	n, err := r.runner.Unit().ResetCodes.DeleteExpired(ctx, r.deps.Clock.Now())
	if err != nil {
		return 0, storeError("sweep reset codes", err)
	}

	if n > 0 {
		r.deps.Metrics.ResetCodeEvent("swept", int(n))
		r.deps.publish(ctx, events.CodesSwept, map[string]string{"count": strconv.FormatInt(n, 10)})
	}
	r.deps.Logger.Info(ctx, "expired reset codes swept", "count", n)
	return n, nil
}

// ResetPasswordWithCode sets a new password for username. An email-scoped
// code must belong to that user's account. The code is consumed in the same
// transaction as the credential write, after it.
func (r *ResetCodeRegistry) ResetPasswordWithCode(ctx context.Context, username, newPassword, code string) error {
	if err := r.deps.Policy.Validate(newPassword); err != nil {
		return err
	}

	return r.runner.InTx(ctx, func(ctx context.Context, u repomanager.Unit) error {
		user, err := u.Users.GetByUsername(ctx, models.NormalizeUsername(username))
		if err != nil {
			if errors.Is(err, common.ErrorNotFound) {
				return ErrUserNotFound
			}
			return storeError("find user", err)
		}

		v, err := r.validate(ctx, u, code, user.Email)
		if err != nil {
			return err
		}

		patch := credentialPatch(r.deps, newPassword)
		if err := u.Users.Update(ctx, user.ID, patch); err != nil {
			return storeError("update credential", err)
		}

		if err := r.consume(ctx, u, v.ID, user.Email); err != nil {
			return err
		}

		r.deps.publish(ctx, events.PasswordReset, map[string]string{"user_id": user.ID, "via": "code"})
		r.deps.Logger.Info(ctx, "password reset with code", "user_id", user.ID, "code_id", v.ID)
		return nil
	})
}

// PrepareAccountWithCode validates an account-creation request. The code
// is not consumed here.
func (r *ResetCodeRegistry) PrepareAccountWithCode(ctx context.Context, req AccountRequest) (*AccountDraft, error) {
	if strings.TrimSpace(req.Name) == "" {
		return nil, &ValidationError{Field: "name", Code: "required", Message: "name is required"}
	}
	if strings.TrimSpace(req.Email) == "" {
		return nil, &ValidationError{Field: "email", Code: "required", Message: "email is required"}
	}
	if err := r.deps.Policy.Validate(req.Password); err != nil {
		return nil, err
	}

	v, err := r.Validate(ctx, req.Code, req.Email)
	if err != nil {
		return nil, err
	}
	if v.UserLevel == common.DefaultUserLevel && (isBlank(v.CompanyID) || isBlank(v.SectorID)) {
		return nil, ErrCodeScopeIncomplete
	}

	return &AccountDraft{
		CodeID:     v.ID,
		Name:       strings.TrimSpace(req.Name),
		Email:      strings.TrimSpace(req.Email),
		Credential: models.ModernCredential(r.deps.Hasher.Hash(req.Password), r.deps.Clock.Now()),
		CompanyID:  v.CompanyID,
		SectorID:   v.SectorID,
		UserLevel:  v.UserLevel,
	}, nil
}

// CreateAccountWithCode writes the account described by a prepared draft
// under username and then consumes the code, in one transaction.
func (r *ResetCodeRegistry) CreateAccountWithCode(ctx context.Context, username string, req AccountRequest) (*models.User, error) {
	draft, err := r.PrepareAccountWithCode(ctx, req)
	if err != nil {
		return nil, err
	}

	var created *models.User
	err = r.runner.InTx(ctx, func(ctx context.Context, u repomanager.Unit) error {
		user := &models.User{
			Username:         models.NormalizeUsername(username),
			Email:            draft.Email,
			Name:             draft.Name,
			CompanyID:        deref(draft.CompanyID),
			SectorID:         deref(draft.SectorID),
			Level:            draft.UserLevel,
			Active:           true,
			ForceFirstAccess: true,
			Credential:       draft.Credential,
		}
		var err error
		if created, err = u.Users.Create(ctx, user); err != nil {
			if errors.Is(err, common.ErrConflict) {
				return &ValidationError{Field: "username", Code: "taken", Message: "username is already taken"}
			}
			return storeError("create user", err)
		}
		return r.consume(ctx, u, draft.CodeID, draft.Email)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func isBlank(s *string) bool { return s == nil || strings.TrimSpace(*s) == "" }

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
