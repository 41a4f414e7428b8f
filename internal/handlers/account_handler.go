package handlers

import (
	"errors"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/premiumpay/premium-pay-api/internal/apperror"
	"github.com/premiumpay/premium-pay-api/internal/models"
	"github.com/premiumpay/premium-pay-api/internal/response"
	"github.com/premiumpay/premium-pay-api/internal/services"
	appvalidator "github.com/premiumpay/premium-pay-api/internal/validator"
)

type loginRequest struct {
	LoginName     string `json:"loginName" binding:"required"`
	LoginPassword string `json:"loginPassword" binding:"required"`
}

// accountForm is bound from multipart forms (create, update) or JSON (update).
// In multipart bodies the address is sent as address[region], address[city]
// and address[homeAddress].
type accountForm struct {
	FullName    string          `json:"fullName" form:"fullName"`
	PhoneNumber string          `json:"phoneNumber" form:"phoneNumber"`
	Email       string          `json:"email" form:"email"`
	BirthDate   string          `json:"birthDate" form:"birthDate"`
	Gender      string          `json:"gender" form:"gender"`
	Description string          `json:"description" form:"description"`
	Address     *models.Address `json:"address" form:"-"`
}

// Login handles POST /api/<kind>/login.
func (h *Handler) Login(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		req, ok := bindLogin(c)
		if !ok {
			return
		}
		res, err := h.Accounts.Login(c.Request.Context(), kind.Name, req.LoginName, req.LoginPassword, c.GetHeader("User-Agent"))
		if err != nil {
			response.Error(c, err)
			return
		}
		writeLogin(c, res)
	}
}

// LoginAny handles POST /api/login, which accepts any account kind.
func (h *Handler) LoginAny(c *gin.Context) {
	req, ok := bindLogin(c)
	if !ok {
		return
	}
	res, err := h.Accounts.LoginAny(c.Request.Context(), req.LoginName, req.LoginPassword, c.GetHeader("User-Agent"))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeLogin(c, res)
}

func bindLogin(c *gin.Context) (*loginRequest, bool) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if fields, ok := appvalidator.FieldErrors(err); ok {
			response.Error(c, apperror.Validation(fields))
		} else {
			response.Error(c, apperror.Validation(map[string]string{"body": "Invalid request body"}))
		}
		return nil, false
	}
	return &req, true
}

func writeLogin(c *gin.Context, res *services.LoginResult) {
	c.JSON(http.StatusOK, gin.H{
		"data":    res.Account.Profile(),
		"message": "Here is your token",
		"token":   res.Token,
	})
}

// List handles GET /api/<kind>/all.
func (h *Handler) List(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		accounts, err := h.Accounts.List(c.Request.Context(), kind.Name)
		if err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, accounts)
	}
}

// Get handles GET /api/<kind>/get/:id.
func (h *Handler) Get(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, err := h.Accounts.Get(c.Request.Context(), kind.Name, c.Param("id"))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, acc)
	}
}

// Create handles POST /api/<kind>/create and returns the generated
// credentials. They are never retrievable again.
func (h *Handler) Create(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := bindAccount(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		creds, err := h.Accounts.Create(c.Request.Context(), kind.Name, in, uploadedImage(c))
		if err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusCreated, creds)
	}
}

// Update handles PUT /api/<kind>/update/:id.
func (h *Handler) Update(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		in, err := bindAccount(c)
		if err != nil {
			response.Error(c, err)
			return
		}
		id := c.Param("id")
		if _, err := h.Accounts.Update(c.Request.Context(), kind.Name, id, in, uploadedImage(c)); err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"message": "Successfully updated",
			"data":    gin.H{kind.IDKey: id},
		})
	}
}

// Delete handles DELETE /api/<kind>/delete/:id.
func (h *Handler) Delete(kind services.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := h.Accounts.Delete(c.Request.Context(), kind.Name, c.Param("id")); err != nil {
			response.Error(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": kind.Title + " deleted"})
	}
}

func bindAccount(c *gin.Context) (services.AccountInput, error) {
	var form accountForm
	var in services.AccountInput

	b := binding.Default(c.Request.Method, c.ContentType())
	if err := c.ShouldBindWith(&form, b); err != nil {
		return in, apperror.Validation(map[string]string{"body": "Invalid request body"})
	}

	in = services.AccountInput{
		FullName:    form.FullName,
		PhoneNumber: form.PhoneNumber,
		Email:       form.Email,
		Gender:      form.Gender,
		Description: form.Description,
	}

	if form.Address != nil {
		in.Address = *form.Address
	} else if addr := c.PostFormMap("address"); len(addr) > 0 {
		in.Address = models.Address{
			Region:      addr["region"],
			City:        addr["city"],
			HomeAddress: addr["homeAddress"],
		}
	}

	if form.BirthDate != "" {
		birth, err := parseDate(form.BirthDate)
		if err != nil {
			return in, apperror.Validation(map[string]string{"birthDate": "birthDate must be a date (YYYY-MM-DD or RFC 3339)"})
		}
		in.BirthDate = &birth
	}
	return in, nil
}

func parseDate(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse(time.DateOnly, s)
}

// uploadedImage returns the imageUrl file part, or nil when none was sent.
func uploadedImage(c *gin.Context) *multipart.FileHeader {
	file, err := c.FormFile("imageUrl")
	if err != nil {
		if !errors.Is(err, http.ErrMissingFile) && !errors.Is(err, http.ErrNotMultipart) {
			_ = c.Error(err)
		}
		return nil
	}
	return file
}
