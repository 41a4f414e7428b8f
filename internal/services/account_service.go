package services

import (
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/premiumpay/premium-pay-api/internal/apperror"
	"github.com/premiumpay/premium-pay-api/internal/models"
	"github.com/premiumpay/premium-pay-api/internal/repository"
	"github.com/premiumpay/premium-pay-api/internal/storage"
	"github.com/premiumpay/premium-pay-api/internal/utils"
	appvalidator "github.com/premiumpay/premium-pay-api/internal/validator"
	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountStore is the persistence the service needs for one collection.
type AccountStore interface {
	Insert(ctx context.Context, acc *models.Account) error
	FindByID(ctx context.Context, id string) (*models.Account, error)
	FindByLoginName(ctx context.Context, loginName string) (*models.Account, error)
	ExistsByPhone(ctx context.Context, phone string) (bool, error)
	List(ctx context.Context, role string) ([]models.Account, error)
	UpdateDetails(ctx context.Context, acc *models.Account) error
	SetSession(ctx context.Context, id primitive.ObjectID, sessionID string) error
	Delete(ctx context.Context, id string) error
}

// AccountInput carries create and update fields. Empty values mean "not
// supplied" and keep the stored value on update.
type AccountInput struct {
	FullName    string
	PhoneNumber string
	Email       string
	BirthDate   *time.Time
	Gender      string
	Address     models.Address
	Description string
}

// Credentials are returned exactly once, when an account is created.
type Credentials struct {
	LoginName     string `json:"loginName"`
	LoginPassword string `json:"loginPassword"`
}

type LoginResult struct {
	Token   string
	Account *models.Account
}

const credentialAttempts = 3

type registration struct {
	kind  Kind
	store AccountStore
}

// AccountService implements login and CRUD for every registered kind.
type AccountService struct {
	kinds    map[string]registration
	byRole   map[string]string
	tokens   *utils.TokenService
	images   storage.ImageStorage
	validate *validator.Validate
	log      logrus.FieldLogger

	dummyOnce sync.Once
	dummyHash string
}

func NewAccountService(tokens *utils.TokenService, images storage.ImageStorage, log logrus.FieldLogger) *AccountService {
	return &AccountService{
		kinds:    make(map[string]registration),
		byRole:   make(map[string]string),
		tokens:   tokens,
		images:   images,
		validate: appvalidator.New(),
		log:      log,
	}
}

// Register binds a kind to its store. It must be called before serving.
func (s *AccountService) Register(kind Kind, store AccountStore) {
	s.kinds[kind.Name] = registration{kind: kind, store: store}
	s.byRole[kind.Role] = kind.Name
}

func (s *AccountService) lookup(kindName string) (registration, error) {
	reg, ok := s.kinds[kindName]
	if !ok {
		return registration{}, apperror.Internal(fmt.Errorf("account kind %q is not registered", kindName))
	}
	return reg, nil
}

// Login authenticates against kindName's collection and then its fallbacks.
func (s *AccountService) Login(ctx context.Context, kindName, loginName, password, agent string) (*LoginResult, error) {
	reg, err := s.lookup(kindName)
	if err != nil {
		return nil, err
	}
	return s.login(ctx, append([]string{kindName}, reg.kind.LoginFallback...), loginName, password, agent)
}

// LoginAny authenticates against users, then supers, then admins.
func (s *AccountService) LoginAny(ctx context.Context, loginName, password, agent string) (*LoginResult, error) {
	return s.login(ctx, AnyLoginOrder, loginName, password, agent)
}

func (s *AccountService) login(ctx context.Context, order []string, loginName, password, agent string) (*LoginResult, error) {
	var (
		acc   *models.Account
		store AccountStore
	)
	for _, name := range order {
		reg, err := s.lookup(name)
		if err != nil {
			return nil, err
		}
		found, err := reg.store.FindByLoginName(ctx, loginName)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, apperror.Internal(err)
		}
		acc, store = found, reg.store
		break
	}

	if acc == nil {
		// Spend the same bcrypt time whether or not the login name exists.
		utils.CheckPasswordHash(password, s.fakeHash())
		return nil, apperror.ErrInvalidCredential
	}
	if !utils.CheckPasswordHash(password, acc.LoginPasswordHash) {
		return nil, apperror.ErrInvalidCredential
	}

	sessionID := uuid.NewString()
	if err := store.SetSession(ctx, acc.ID, sessionID); err != nil {
		return nil, apperror.Internal(err)
	}
	acc.SessionID = sessionID

	token, err := s.tokens.Sign(acc.ID.Hex(), agent, acc.Role, sessionID)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("sign token: %w", err))
	}

	s.log.WithFields(logrus.Fields{"accountId": acc.ID.Hex(), "role": acc.Role}).Info("login succeeded")
	return &LoginResult{Token: token, Account: acc}, nil
}

func (s *AccountService) fakeHash() string {
	s.dummyOnce.Do(func() {
		s.dummyHash, _ = utils.HashPassword(uuid.NewString())
	})
	return s.dummyHash
}

// CurrentSession returns the session id persisted for the account behind a
// token's role and user id.
func (s *AccountService) CurrentSession(ctx context.Context, role, userID string) (string, error) {
	kindName, ok := s.byRole[role]
	if !ok {
		return "", apperror.ErrInvalidToken
	}
	acc, err := s.kinds[kindName].store.FindByID(ctx, userID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperror.ErrInvalidToken
	}
	if err != nil {
		return "", apperror.Internal(err)
	}
	return acc.SessionID, nil
}

func (s *AccountService) List(ctx context.Context, kindName string) ([]models.Account, error) {
	reg, err := s.lookup(kindName)
	if err != nil {
		return nil, err
	}

	role := ""
	if reg.kind.ListByRole {
		role = reg.kind.Role
	}
	accounts, err := reg.store.List(ctx, role)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return accounts, nil
}

func (s *AccountService) Get(ctx context.Context, kindName, id string) (*models.Account, error) {
	reg, err := s.lookup(kindName)
	if err != nil {
		return nil, err
	}
	return s.find(ctx, reg, id)
}

func (s *AccountService) find(ctx context.Context, reg registration, id string) (*models.Account, error) {
	acc, err := reg.store.FindByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.NotFound(reg.kind.Title + " not found")
	}
	if err != nil {
		return nil, apperror.Internal(err)
	}
	return acc, nil
}

// Create validates the input, stores the image and inserts a new account with
// generated credentials. The plaintext password only leaves through the result.
func (s *AccountService) Create(ctx context.Context, kindName string, in AccountInput, image *multipart.FileHeader) (*Credentials, error) {
	reg, err := s.lookup(kindName)
	if err != nil {
		return nil, err
	}

	acc := &models.Account{Role: reg.kind.Role}
	merge(acc, in, reg.kind.Profile)

	fields := s.check(acc, reg.kind.Profile)
	if image == nil {
		fields["imageUrl"] = "imageUrl is required"
	}
	if len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	exists, err := reg.store.ExistsByPhone(ctx, acc.PhoneNumber)
	if err != nil {
		return nil, apperror.Internal(err)
	}
	if exists {
		return nil, apperror.Conflict(reg.kind.Noun + " with the given phone number already exists")
	}

	acc.ImageURL, err = s.saveImage(ctx, image)
	if err != nil {
		return nil, err
	}

	var creds *Credentials
	for attempt := 1; ; attempt++ {
		creds, err = s.assignCredentials(acc)
		if err != nil {
			break
		}
		err = reg.store.Insert(ctx, acc)
		var dup *repository.DuplicateKeyError
		if errors.As(err, &dup) && dup.Field == "loginName" && attempt < credentialAttempts {
			acc.ID = primitive.NilObjectID
			continue
		}
		break
	}
	if err != nil {
		s.discardImage(ctx, acc.ImageURL)
		return nil, s.translateWrite(reg.kind, err)
	}

	s.log.WithFields(logrus.Fields{"kind": reg.kind.Name, "accountId": acc.ID.Hex()}).Info("account created")
	return creds, nil
}

func (s *AccountService) assignCredentials(acc *models.Account) (*Credentials, error) {
	loginName, password, err := utils.GenerateCredentials()
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("generate credentials: %w", err))
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, apperror.Internal(fmt.Errorf("hash password: %w", err))
	}
	acc.LoginName = loginName
	acc.LoginPasswordHash = hash
	return &Credentials{LoginName: loginName, LoginPassword: password}, nil
}

// Update merges the supplied fields over the stored account. The image is
// replaced only when a new one is uploaded.
func (s *AccountService) Update(ctx context.Context, kindName, id string, in AccountInput, image *multipart.FileHeader) (*models.Account, error) {
	reg, err := s.lookup(kindName)
	if err != nil {
		return nil, err
	}

	acc, err := s.find(ctx, reg, id)
	if err != nil {
		return nil, err
	}
	merge(acc, in, reg.kind.Profile)

	if fields := s.check(acc, reg.kind.Profile); len(fields) > 0 {
		return nil, apperror.Validation(fields)
	}

	oldImage := acc.ImageURL
	if image != nil {
		if acc.ImageURL, err = s.saveImage(ctx, image); err != nil {
			return nil, err
		}
	}

	if err := reg.store.UpdateDetails(ctx, acc); err != nil {
		if image != nil {
			s.discardImage(ctx, acc.ImageURL)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound(reg.kind.Title + " not found")
		}
		return nil, s.translateWrite(reg.kind, err)
	}

	if image != nil && oldImage != "" {
		s.discardImage(ctx, oldImage)
	}
	return acc, nil
}

func (s *AccountService) Delete(ctx context.Context, kindName, id string) error {
	reg, err := s.lookup(kindName)
	if err != nil {
		return err
	}

	acc, err := s.find(ctx, reg, id)
	if err != nil {
		return err
	}
	if err := reg.store.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound(reg.kind.Title + " not found")
		}
		return apperror.Internal(err)
	}

	s.discardImage(ctx, acc.ImageURL)
	s.log.WithFields(logrus.Fields{"kind": reg.kind.Name, "accountId": id}).Info("account deleted")
	return nil
}

// merge copies every supplied field of in onto acc.
func merge(acc *models.Account, in AccountInput, profile bool) {
	acc.FullName = pick(in.FullName, acc.FullName)
	acc.PhoneNumber = pick(in.PhoneNumber, acc.PhoneNumber)
	acc.Email = pick(in.Email, acc.Email)
	if !profile {
		return
	}

	if in.BirthDate != nil {
		acc.BirthDate = in.BirthDate
	}
	acc.Gender = pick(in.Gender, acc.Gender)
	acc.Description = pick(in.Description, acc.Description)

	if in.Address != (models.Address{}) {
		addr := models.Address{}
		if acc.Address != nil {
			addr = *acc.Address
		}
		addr.Region = pick(in.Address.Region, addr.Region)
		addr.City = pick(in.Address.City, addr.City)
		addr.HomeAddress = pick(in.Address.HomeAddress, addr.HomeAddress)
		acc.Address = &addr
	}
}

func pick(value, fallback string) string {
	if value != "" {
		return value
	}
	return fallback
}

type accountRules struct {
	FullName    string `json:"fullName" validate:"required,max=100"`
	PhoneNumber string `json:"phoneNumber" validate:"required,uzphone"`
	Email       string `json:"email" validate:"required,email"`
}

type addressRules struct {
	Region      string `json:"region" validate:"required"`
	City        string `json:"city" validate:"required"`
	HomeAddress string `json:"homeAddress" validate:"required"`
}

type profileRules struct {
	BirthDate   *time.Time    `json:"birthDate" validate:"required"`
	Gender      string        `json:"gender" validate:"required,oneof=Мужской Женский"`
	Address     *addressRules `json:"address" validate:"required"`
	Description string        `json:"description" validate:"required"`
}

// check validates the merged document and returns a field-keyed error map.
func (s *AccountService) check(acc *models.Account, profile bool) map[string]string {
	fields := make(map[string]string)
	collect := func(err error) {
		if err == nil {
			return
		}
		fe, ok := appvalidator.FieldErrors(err)
		if !ok {
			fields["_"] = err.Error()
			return
		}
		for k, v := range fe {
			fields[k] = v
		}
	}

	collect(s.validate.Struct(accountRules{
		FullName:    acc.FullName,
		PhoneNumber: acc.PhoneNumber,
		Email:       acc.Email,
	}))
	if profile {
		rules := profileRules{
			BirthDate:   acc.BirthDate,
			Gender:      acc.Gender,
			Description: acc.Description,
		}
		if acc.Address != nil {
			rules.Address = &addressRules{
				Region:      acc.Address.Region,
				City:        acc.Address.City,
				HomeAddress: acc.Address.HomeAddress,
			}
		}
		collect(s.validate.Struct(rules))
	}
	return fields
}

func (s *AccountService) saveImage(ctx context.Context, image *multipart.FileHeader) (string, error) {
	ref, err := s.images.Save(ctx, image)
	if errors.Is(err, storage.ErrNotImage) || errors.Is(err, storage.ErrTooLarge) {
		return "", apperror.Validation(map[string]string{"imageUrl": err.Error()})
	}
	if err != nil {
		return "", apperror.Internal(err)
	}
	return ref, nil
}

func (s *AccountService) discardImage(ctx context.Context, ref string) {
	if ref == "" {
		return
	}
	if err := s.images.Delete(ctx, ref); err != nil {
		s.log.WithError(err).WithField("image", ref).Warn("failed to remove image")
	}
}

func (s *AccountService) translateWrite(kind Kind, err error) error {
	var dup *repository.DuplicateKeyError
	if errors.As(err, &dup) {
		if dup.Field == "" {
			return apperror.Conflict(kind.Noun + " with the same unique field already exists")
		}
		return apperror.Validation(map[string]string{dup.Field: dup.Field + " already exists"})
	}
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return apperror.Internal(err)
}
