package services

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"drive-eval/backend/app/models"
	"drive-eval/backend/app/policy"
	"drive-eval/backend/app/repo"
	"drive-eval/backend/global"

	"github.com/go-playground/validator/v10"
	"golang.org/x/crypto/bcrypt"
)

const maxPasswordBytes = 72

// Registration is the input of a self-service sign-up.
type Registration struct {
	Username      string `json:"username" validate:"required,max=64"`
	Password      string `json:"password" validate:"required,max=72"`
	Name          string `json:"name" validate:"max=128"`
	VehicleNumber string `json:"vehicle_number" validate:"max=32"`
}

// AccountChange is what an admin may change on an existing account.
// A nil EvaluatorAccess leaves the flag untouched.
type AccountChange struct {
	Role            models.Role `json:"role" validate:"required,oneof=admin evaluator viewer"`
	Active          bool        `json:"active"`
	EvaluatorAccess *bool       `json:"evaluator_access,omitempty"`
}

type AccountService struct {
	accounts repo.AccountRepository
	policy   *policy.Policy
	validate *validator.Validate
	cost     int
}

func NewAccountService(accounts repo.AccountRepository, p *policy.Policy) *AccountService {
	return &AccountService{accounts: accounts, policy: p, validate: validator.New(), cost: bcrypt.DefaultCost}
}

// EnsureAdmin seeds one active admin when the account table is empty.
// An empty password is replaced by a random one which is logged once.
func (s *AccountService) EnsureAdmin(username, password string) error {
	if err := s.accounts.Ensure(); err != nil {
		return err
	}
	n, err := s.accounts.Count()
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	username = strings.TrimSpace(username)
	if username == "" {
		username = "admin"
	}
	generated := password == ""
	if generated {
		buf := make([]byte, 16)
		if _, err := rand.Read(buf); err != nil {
			return fmt.Errorf("generate admin password: %w", err)
		}
		password = hex.EncodeToString(buf)
	}
	if len(password) > maxPasswordBytes {
		return fmt.Errorf("%w: admin password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.accounts.Create(&models.Account{
		Username:        username,
		PasswordHash:    string(hash),
		Role:            models.RoleAdmin,
		Active:          true,
		EvaluatorAccess: true,
	})
	if err != nil {
		return err
	}
	ev := global.Logger.Warn().Str("username", username)
	if generated {
		ev = ev.Str("password", password)
	}
	ev.Msg("seeded initial admin account")
	return nil
}

// FindByCredentials returns the account matching username and password, or
// nil. It does not look at the active flag. A legacy plaintext credential
// that matches is replaced by a bcrypt hash.
func (s *AccountService) FindByCredentials(username, password string) (*models.Account, error) {
	if strings.TrimSpace(username) == "" || password == "" {
		return nil, nil
	}
	a, err := s.accounts.FindByUsername(username)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if isBcrypt(a.PasswordHash) {
		if bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(password)) != nil {
			return nil, nil
		}
		return a, nil
	}
	if subtle.ConstantTimeCompare([]byte(a.PasswordHash), []byte(password)) != 1 {
		return nil, nil
	}
	if hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost); err == nil {
		a.PasswordHash = string(hash)
		if err := s.accounts.Update(a); err != nil {
			global.Logger.Warn().Err(err).Str("username", a.Username).Msg("rehash legacy credential")
		} else {
			global.Logger.Info().Str("username", a.Username).Msg("legacy credential rehashed")
		}
	}
	return a, nil
}

// Login authenticates an active account. Every failure is ErrAuthentication.
func (s *AccountService) Login(username, password string) (*models.Account, error) {
	a, err := s.FindByCredentials(username, password)
	if err != nil {
		return nil, err
	}
	if a == nil || !a.Active {
		global.Logger.Info().Str("username", strings.TrimSpace(username)).Msg("login rejected")
		return nil, ErrAuthentication
	}
	return a, nil
}

// Register creates an inactive evaluator without evaluator access.
func (s *AccountService) Register(in Registration) error {
	in.Username = strings.TrimSpace(in.Username)
	in.Name = strings.TrimSpace(in.Name)
	in.VehicleNumber = strings.TrimSpace(in.VehicleNumber)
	if err := s.validate.Struct(in); err != nil {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	// validator's max counts runes; bcrypt limits bytes.
	if len(in.Password) > maxPasswordBytes {
		return fmt.Errorf("%w: password must be at most %d bytes", ErrValidation, maxPasswordBytes)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	err = s.accounts.Create(&models.Account{
		Username:      in.Username,
		PasswordHash:  string(hash),
		Role:          models.RoleEvaluator,
		Name:          in.Name,
		VehicleNumber: in.VehicleNumber,
	})
	if err != nil {
		return err
	}
	global.Logger.Info().Str("username", in.Username).Msg("account registered")
	return nil
}

// Get returns the account of username, redacted.
func (s *AccountService) Get(username string) (*models.Account, error) {
	a, err := s.accounts.FindByUsername(username)
	if err != nil {
		return nil, err
	}
	r := a.Redacted()
	return &r, nil
}

// List returns every account. Credentials are only shown to admins.
func (s *AccountService) List(actor models.Account) ([]models.Account, error) {
	if !actor.Active {
		return nil, ErrForbidden
	}
	list, err := s.accounts.List()
	if err != nil {
		return nil, err
	}
	if !s.policy.Allowed(policy.SubjectOf(actor), policy.ManageAccounts, "") {
		for i := range list {
			list[i] = list[i].Redacted()
		}
	}
	return list, nil
}

// UpdateRoleAndActive applies change to username on behalf of actor.
func (s *AccountService) UpdateRoleAndActive(actor models.Account, username string, change AccountChange) (*models.Account, error) {
	if !s.policy.Allowed(policy.SubjectOf(actor), policy.ManageAccounts, "") {
		return nil, ErrForbidden
	}
	if err := s.validate.Struct(change); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	list, err := s.accounts.List()
	if err != nil {
		return nil, err
	}
	var target *models.Account
	activeAdmins := 0
	for i := range list {
		if list[i].Role == models.RoleAdmin && list[i].Active {
			activeAdmins++
		}
		if models.UsernameKey(list[i].Username) == models.UsernameKey(username) {
			target = &list[i]
		}
	}
	if target == nil {
		return nil, repo.ErrNotFound
	}
	wasActiveAdmin := target.Role == models.RoleAdmin && target.Active
	staysActiveAdmin := change.Role == models.RoleAdmin && change.Active
	if wasActiveAdmin && !staysActiveAdmin && activeAdmins <= 1 {
		return nil, ErrLastAdmin
	}

	target.Role = change.Role
	target.Active = change.Active
	if change.EvaluatorAccess != nil {
		target.EvaluatorAccess = *change.EvaluatorAccess
	}
	if err := s.accounts.Update(target); err != nil {
		return nil, err
	}
	global.Logger.Info().
		Str("actor", actor.Username).
		Str("username", target.Username).
		Str("role", string(target.Role)).
		Bool("active", target.Active).
		Bool("evaluator_access", target.EvaluatorAccess).
		Msg("account updated")
	r := target.Redacted()
	return &r, nil
}

func isBcrypt(s string) bool {
	_, err := bcrypt.Cost([]byte(s))
	return err == nil
}
