package httpapi

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"cycleworks/internal/domain"
	"cycleworks/internal/payment"
	"cycleworks/internal/repository"
	"cycleworks/internal/service"
)

// Services зависимости HTTP-слоя
type Services struct {
	Users    *service.UserService
	Products *service.ProductService
	Orders   *service.OrderService
	Reviews  *service.ReviewService
	Payments *service.PaymentService
}

type Options struct {
	Logger         *slog.Logger
	RequestTimeout time.Duration
}

type Server struct {
	engine   *gin.Engine
	tokens   TokenVerifier
	users    *service.UserService
	products *service.ProductService
	orders   *service.OrderService
	reviews  *service.ReviewService
	payments *service.PaymentService
	logger   *slog.Logger
}

func NewServer(svc Services, tokens TokenVerifier, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := registerValidators(); err != nil {
		panic(fmt.Sprintf("httpapi: register validators: %v", err))
	}

	r := gin.New()
	r.Use(requestID(), requestLogger(logger), gin.Recovery(), cors.New(cors.Config{
		AllowAllOrigins: true,
		AllowMethods:    []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:    []string{"Origin", "Content-Type", "Authorization", requestIDHeader, "Idempotency-Key"},
		ExposeHeaders:   []string{requestIDHeader},
		MaxAge:          12 * time.Hour,
	}), requestTimeout(opts.RequestTimeout))

	s := &Server{
		engine:   r,
		tokens:   tokens,
		users:    svc.Users,
		products: svc.Products,
		orders:   svc.Orders,
		reviews:  svc.Reviews,
		payments: svc.Payments,
		logger:   logger,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Engine() *gin.Engine { return s.engine }

func (s *Server) registerRoutes() {
	// Swagger UI
	s.engine.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	s.engine.GET("/", s.home)

	s.engine.POST("/create-payment-intent", s.createPaymentIntent)

	users := s.engine.Group("/user")
	{
		users.PUT(":email", s.upsertUser)
		users.GET("", s.requireToken, s.listUsers)
		users.PUT("admin/:email", s.requireToken, s.requireAdmin, s.makeAdmin)
	}
	s.engine.GET("/admin/:email", s.adminStatus)

	products := s.engine.Group("/product")
	{
		products.GET("", s.listProducts)
		products.POST("", s.requireToken, s.createProduct)
		products.DELETE(":id", s.requireToken, s.requireAdmin, s.deleteProduct)
	}

	orders := s.engine.Group("/order")
	{
		orders.POST("", s.createOrder)
		orders.GET("", s.requireToken, s.listOrders)
		// one wildcard serves both the id lookup and the owner lookup
		orders.GET(":key", s.getOrderByKey)
		orders.PATCH(":id", s.requireToken, s.confirmPayment)
	}

	reviews := s.engine.Group("/review")
	{
		reviews.POST("", s.requireToken, s.createReview)
		reviews.GET("", s.listReviews)
	}
}

var (
	validatorsOnce sync.Once
	validatorsErr  error
)

// registerValidators adds the objectid rule to gin's validator engine.
func registerValidators() error {
	validatorsOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			validatorsErr = fmt.Errorf("unexpected validator engine %T", binding.Validator.Engine())
			return
		}
		validatorsErr = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
			return repository.IsObjectID(fl.Field().String())
		})
	})
	return validatorsErr
}

// @Summary Liveness
// @Produce plain
// @Success 200 {string} string
// @Router / [get]
func (s *Server) home(c *gin.Context) {
	c.String(http.StatusOK, "Welcome to Server")
}

// Payment handlers
type paymentIntentReq struct {
	SubTotal float64 `json:"subTotal" binding:"gt=0"`
}

type paymentIntentResp struct {
	ClientSecret string `json:"clientSecret"`
}

// @Summary Create payment intent
// @Tags payments
// @Accept json
// @Produce json
// @Param input body paymentIntentReq true "Order subtotal in dollars"
// @Success 200 {object} paymentIntentResp
// @Failure 400 {object} map[string]string
// @Router /create-payment-intent [post]
func (s *Server) createPaymentIntent(c *gin.Context) {
	var req paymentIntentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "subTotal must be a positive number"})
		return
	}
	ctx := c.Request.Context()
	if key := c.GetHeader("Idempotency-Key"); key != "" {
		ctx = payment.WithIdempotencyKey(ctx, key)
	}
	secret, err := s.payments.CreateIntent(ctx, req.SubTotal)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, paymentIntentResp{ClientSecret: secret})
}

type idURI struct {
	ID string `uri:"id" binding:"required,objectid"`
}

type confirmPaymentReq struct {
	TransactionID string  `json:"transactionId" binding:"required"`
	Email         string  `json:"email" binding:"omitempty,email"`
	Amount        float64 `json:"amount" binding:"gte=0"`
}

// @Summary Confirm order payment
// @Tags orders
// @Accept json
// @Produce json
// @Security Bearer
// @Param id path string true "Order ID"
// @Param input body confirmPaymentReq true "Processor transaction"
// @Success 200 {object} domain.WriteResult
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 402 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Failure 409 {object} map[string]string
// @Router /order/{id} [patch]
func (s *Server) confirmPayment(c *gin.Context) {
	var uri idURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	var req confirmPaymentReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := s.payments.ConfirmOrder(c.Request.Context(), uri.ID, service.ConfirmPayment{
		TransactionID: req.TransactionID,
		Email:         req.Email,
		Amount:        req.Amount,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// User handlers
type emailURI struct {
	Email string `uri:"email" binding:"required,email"`
}

type userReq struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

type loginResp struct {
	Result domain.WriteResult `json:"result"`
	Token  string             `json:"token"`
}

// @Summary Upsert user and issue token
// @Tags users
// @Accept json
// @Produce json
// @Param email path string true "Email"
// @Param input body userReq false "Profile"
// @Success 200 {object} loginResp
// @Failure 400 {object} map[string]string
// @Router /user/{email} [put]
func (s *Server) upsertUser(c *gin.Context) {
	var uri emailURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	var req userReq
	// body is optional
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, token, err := s.users.Login(c.Request.Context(), uri.Email, domain.UserProfile{Name: req.Name, Image: req.Image})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, loginResp{Result: res, Token: token})
}

// @Summary List users
// @Tags users
// @Produce json
// @Security Bearer
// @Success 200 {array} domain.User
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /user [get]
func (s *Server) listUsers(c *gin.Context) {
	list, err := s.users.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Promote user to admin
// @Tags users
// @Produce json
// @Security Bearer
// @Param email path string true "Email"
// @Success 200 {object} domain.WriteResult
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /user/admin/{email} [put]
func (s *Server) makeAdmin(c *gin.Context) {
	var uri emailURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid email"})
		return
	}
	res, err := s.users.Promote(c.Request.Context(), uri.Email)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Check admin role
// @Tags users
// @Produce json
// @Param email path string true "Email"
// @Success 200 {object} map[string]bool
// @Router /admin/{email} [get]
func (s *Server) adminStatus(c *gin.Context) {
	ok, err := s.users.IsAdmin(c.Request.Context(), c.Param("email"))
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"admin": ok})
}

// Product handlers
type createProductReq struct {
	Name              string  `json:"name" binding:"required"`
	Description       string  `json:"description"`
	Image             string  `json:"image"`
	Price             float64 `json:"price" binding:"gte=0"`
	MinimumQuantity   int64   `json:"minimumQuantity" binding:"gte=0"`
	AvailableQuantity int64   `json:"availableQuantity" binding:"gte=0"`
}

// @Summary List products
// @Tags products
// @Produce json
// @Success 200 {array} domain.Product
// @Router /product [get]
func (s *Server) listProducts(c *gin.Context) {
	list, err := s.products.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Create product
// @Tags products
// @Accept json
// @Produce json
// @Security Bearer
// @Param input body createProductReq true "Product"
// @Success 200 {object} domain.WriteResult
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /product [post]
func (s *Server) createProduct(c *gin.Context) {
	var req createProductReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := s.products.Create(c.Request.Context(), domain.Product{
		Name:              req.Name,
		Description:       req.Description,
		Image:             req.Image,
		Price:             req.Price,
		MinimumQuantity:   req.MinimumQuantity,
		AvailableQuantity: req.AvailableQuantity,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary Delete product
// @Tags products
// @Produce json
// @Security Bearer
// @Param id path string true "Product ID"
// @Success 200 {object} domain.WriteResult
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /product/{id} [delete]
func (s *Server) deleteProduct(c *gin.Context) {
	var uri idURI
	if err := c.ShouldBindUri(&uri); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid id"})
		return
	}
	res, err := s.products.Delete(c.Request.Context(), uri.ID)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// Order handlers
type createOrderReq struct {
	Email       string  `json:"email" binding:"required,email"`
	Name        string  `json:"name"`
	Phone       string  `json:"phone"`
	Address     string  `json:"address"`
	ProductID   string  `json:"productId"`
	ProductName string  `json:"productName"`
	Quantity    int64   `json:"quantity" binding:"gte=1"`
	SubTotal    float64 `json:"subTotal" binding:"gte=0"`
}

type createOrderResp struct {
	Success bool               `json:"success"`
	Result  domain.WriteResult `json:"result"`
}

// @Summary Create order
// @Tags orders
// @Accept json
// @Produce json
// @Param input body createOrderReq true "Order"
// @Success 200 {object} createOrderResp
// @Failure 400 {object} map[string]string
// @Router /order [post]
func (s *Server) createOrder(c *gin.Context) {
	var req createOrderReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := s.orders.CreateOrder(c.Request.Context(), domain.Order{
		Email:       req.Email,
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     req.Address,
		ProductID:   req.ProductID,
		ProductName: req.ProductName,
		Quantity:    req.Quantity,
		SubTotal:    req.SubTotal,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, createOrderResp{Success: true, Result: res})
}

// @Summary List all orders
// @Tags orders
// @Produce json
// @Security Bearer
// @Success 200 {array} domain.Order
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Router /order [get]
func (s *Server) listOrders(c *gin.Context) {
	list, err := s.orders.ListOrders(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// @Summary Get order by id, or list orders by owner email
// @Description A 24-hex key is an order id and needs no token. Any other key is
// @Description treated as an owner email and must match the token's email.
// @Tags orders
// @Produce json
// @Param key path string true "Order ID or owner email"
// @Success 200 {object} domain.Order
// @Failure 401 {object} map[string]string
// @Failure 403 {object} map[string]string
// @Failure 404 {object} map[string]string
// @Router /order/{key} [get]
func (s *Server) getOrderByKey(c *gin.Context) {
	key := c.Param("key")
	if repository.IsObjectID(key) {
		o, err := s.orders.GetOrder(c.Request.Context(), key)
		if err != nil {
			s.fail(c, err)
			return
		}
		c.JSON(http.StatusOK, o)
		return
	}

	claims, ok := s.authenticate(c)
	if !ok {
		return
	}
	list, err := s.orders.OrdersOf(c.Request.Context(), claims.Email, key)
	if errors.Is(err, service.ErrForbidden) {
		c.JSON(http.StatusForbidden, gin.H{"message": "Forbidden Access"})
		return
	}
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Review handlers
type createReviewReq struct {
	Name    string `json:"name"`
	Email   string `json:"email" binding:"omitempty,email"`
	Image   string `json:"image"`
	Rating  int    `json:"rating" binding:"required,min=1,max=5"`
	Comment string `json:"comment"`
}

// @Summary Create review
// @Tags reviews
// @Accept json
// @Produce json
// @Security Bearer
// @Param input body createReviewReq true "Review"
// @Success 200 {object} domain.WriteResult
// @Failure 400 {object} map[string]string
// @Failure 401 {object} map[string]string
// @Router /review [post]
func (s *Server) createReview(c *gin.Context) {
	var req createReviewReq
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	res, err := s.reviews.Create(c.Request.Context(), domain.Review{
		Name:    req.Name,
		Email:   req.Email,
		Image:   req.Image,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// @Summary List reviews
// @Tags reviews
// @Produce json
// @Success 200 {array} domain.Review
// @Router /review [get]
func (s *Server) listReviews(c *gin.Context) {
	list, err := s.reviews.List(c.Request.Context())
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// fail writes the mapped status. Upstream failures are logged and not echoed.
func (s *Server) fail(c *gin.Context, err error) {
	status := mapErrorToStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			"request_id", c.GetString(requestIDKey),
			"path", c.FullPath(),
			"err", err,
		)
		c.JSON(status, gin.H{"error": "internal server error"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func mapErrorToStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrAlreadyPaid), errors.Is(err, service.ErrTransactionUsed):
		return http.StatusConflict
	case errors.Is(err, service.ErrPaymentNotVerified):
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}
