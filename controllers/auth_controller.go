package controllers

import (
	"errors"
	"fmt"
	"html"
	"log"
	"net/http"
	"os"
	"strings"

	"cloud.google.com/go/auth/credentials/idtoken"
	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/vnkhanh/siquiz-backend/models"
	"github.com/vnkhanh/siquiz-backend/services"
	"github.com/vnkhanh/siquiz-backend/utils"
)

type RegisterInput struct {
	Email    string `json:"email" binding:"required,email,max=150"`
	Password string `json:"password" binding:"required,min=6,max=72"`
	FullName string `json:"full_name" binding:"required,max=150"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// sendEmail cho phép test thay thế SMTP
var sendEmail = utils.SendEmail

var errEmailTaken = errors.New("email đã được sử dụng")

const msgBadCredentials = "Email hoặc mật khẩu không đúng"

func userPayload(u *models.User) gin.H {
	return gin.H{
		"id":         u.ID,
		"email":      u.Email,
		"full_name":  u.FullName,
		"role":       u.Role,
		"avatar_url": u.AvatarURL,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// createAccount băm mật khẩu và tạo user, trả errEmailTaken khi email đã tồn tại
func createAccount(db *gorm.DB, fullName, email, password string, role models.UserRole) (*models.User, error) {
	var count int64
	if err := db.Model(&models.User{}).Where("email = ?", email).Count(&count).Error; err != nil {
		return nil, err
	}
	if count > 0 {
		return nil, errEmailTaken
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("bcrypt: %w", err)
	}
	user := &models.User{
		FullName: strings.TrimSpace(fullName),
		Email:    email,
		Password: string(hashed),
		Role:     role,
	}
	if err := db.Create(user).Error; err != nil {
		// request song song cùng email
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, errEmailTaken
		}
		return nil, err
	}
	return user, nil
}

// issueSession kiểm tra trạng thái tài khoản rồi trả JWT kèm thông tin user
func issueSession(c *gin.Context, user *models.User, message string) {
	if !user.IsActive() {
		c.JSON(http.StatusForbidden, gin.H{"error": "Tài khoản đã bị tạm khóa"})
		return
	}
	token, err := utils.GenerateToken(user.ID.String(), string(user.Role))
	if err != nil {
		log.Printf("[Auth] tạo token cho %s thất bại: %v", user.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Không thể tạo token"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"token":   token,
		"user":    userPayload(user),
	})
}

func Register(c *gin.Context) {
	var input RegisterInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	user, err := createAccount(c.MustGet("db").(*gorm.DB), input.FullName, normalizeEmail(input.Email), input.Password, models.RoleUser)
	if errors.Is(err, errEmailTaken) {
		respondError(c, services.NewValidationError("email", "Email đã được sử dụng"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"message": "Đăng ký tài khoản thành công", "user": userPayload(user)})
}

func Login(c *gin.Context) {
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	var user models.User
	err := c.MustGet("db").(*gorm.DB).Where("email = ?", normalizeEmail(input.Email)).First(&user).Error
	// tài khoản Google không có mật khẩu
	if err != nil || user.Password == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": msgBadCredentials})
		return
	}
	issueSession(c, &user, "Đăng nhập thành công")
}

type GoogleLoginInput struct {
	IDToken string `json:"id_token" binding:"required"`
}

// GoogleLogin tạo tài khoản user lần đầu đăng nhập bằng Google (không có mật khẩu)
func GoogleLogin(c *gin.Context) {
	var input GoogleLoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	payload, err := idtoken.Validate(c.Request.Context(), input.IDToken, os.Getenv("GOOGLE_CLIENT_ID"))
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token Google không hợp lệ"})
		return
	}
	email, _ := payload.Claims["email"].(string)
	name, _ := payload.Claims["name"].(string)
	if email = normalizeEmail(email); email == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token Google không có email"})
		return
	}

	db := c.MustGet("db").(*gorm.DB)
	user := models.User{Email: email, FullName: name, Role: models.RoleUser}
	if err := db.Where(models.User{Email: email}).FirstOrCreate(&user).Error; err != nil {
		respondError(c, err)
		return
	}
	issueSession(c, &user, "Đăng nhập Google thành công")
}

type ChangePasswordInput struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6,max=72,nefield=OldPassword"`
}

func ChangePassword(c *gin.Context) {
	var input ChangePasswordInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	db := c.MustGet("db").(*gorm.DB)
	var user models.User
	if err := db.First(&user, "id = ?", c.GetString("user_id")).Error; err != nil {
		respondError(c, err)
		return
	}
	if user.Password == "" || bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(input.OldPassword)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Mật khẩu hiện tại không đúng"})
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(input.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		respondError(c, err)
		return
	}
	if err := db.Model(&user).Update("password", string(hashed)).Error; err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Đổi mật khẩu thành công"})
}

// ==== Admin cấp tài khoản người soạn quiz ====

type CreateCreatorInput struct {
	FullName string `json:"full_name" binding:"required,max=150"`
	Email    string `json:"email" binding:"required,email,max=150"`
	Password string `json:"password" binding:"required,min=6,max=72"`
}

func creatorWelcomeMail(name, email, password string) string {
	return fmt.Sprintf(`<h3>Xin chào %s,</h3>
<p>Quản trị viên đã cấp cho bạn tài khoản <b>người soạn quiz</b> trên Siquiz.</p>
<p>Email: <b>%s</b><br>Mật khẩu tạm: <b>%s</b></p>
<p>Hãy đổi mật khẩu ngay sau lần đăng nhập đầu tiên.</p>
<p><i>Email gửi tự động, vui lòng không phản hồi.</i></p>`,
		html.EscapeString(name), html.EscapeString(email), html.EscapeString(password))
}

func AdminCreateCreator(c *gin.Context) {
	var input CreateCreatorInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}

	email := normalizeEmail(input.Email)
	user, err := createAccount(c.MustGet("db").(*gorm.DB), input.FullName, email, input.Password, models.RoleCreator)
	if errors.Is(err, errEmailTaken) {
		respondError(c, services.NewValidationError("email", "Email đã tồn tại"))
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	// lỗi SMTP chỉ ghi log, không ảnh hưởng response
	body := creatorWelcomeMail(user.FullName, email, input.Password)
	go func() {
		if err := sendEmail(email, "Tài khoản soạn quiz Siquiz của bạn", body); err != nil {
			log.Printf("[Mail] gửi thông báo cho %s thất bại: %v", email, err)
		}
	}()

	c.JSON(http.StatusCreated, gin.H{
		"message": "Đã tạo tài khoản người soạn quiz",
		"user":    userPayload(user),
	})
}
