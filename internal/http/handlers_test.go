package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cycleworks/internal/auth"
	"cycleworks/internal/domain"
	"cycleworks/internal/payment"
	"cycleworks/internal/repository"
	"cycleworks/internal/service"
)

const testSecret = "test-secret"

type testEnv struct {
	srv     *Server
	mem     *repository.MemoryStore
	store   repository.Store
	gateway *payment.Fake
	tokens  *auth.Tokens
}

func setupServer(t *testing.T, verify bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	mem := repository.NewMemoryStore()
	store := mem.Repositories()
	gw := payment.NewFake()
	tokens := auth.NewTokens(testSecret, 0)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := Services{
		Users:    service.NewUserService(store.Users, tokens),
		Products: service.NewProductService(store.Products),
		Orders:   service.NewOrderService(store.Orders),
		Reviews:  service.NewReviewService(store.Reviews),
		Payments: service.NewPaymentService(gw, store.Orders, store.Payments, verify, logger),
	}
	srv := NewServer(svc, tokens, Options{Logger: logger, RequestTimeout: 5 * time.Second})
	return &testEnv{srv: srv, mem: mem, store: store, gateway: gw, tokens: tokens}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)
	return w
}

// login upserts email through the API and returns the issued token.
func (e *testEnv) login(t *testing.T, email string) string {
	t.Helper()
	w := e.do(t, http.MethodPut, "/user/"+email, "", map[string]any{"name": "Rider"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (e *testEnv) admin(t *testing.T, email string) string {
	t.Helper()
	token := e.login(t, email)
	_, err := e.store.Users.SetRole(context.Background(), email, domain.RoleAdmin)
	require.NoError(t, err)
	return token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestHome(t *testing.T) {
	e := setupServer(t, false)
	w := e.do(t, http.MethodGet, "/", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "Welcome to Server", w.Body.String())
}

func TestUserUpsert_NoDuplicates(t *testing.T) {
	e := setupServer(t, false)
	e.login(t, "rider@example.com")

	w := e.do(t, http.MethodPut, "/user/rider@example.com", "", map[string]any{"name": "Renamed"})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[struct {
		Result domain.WriteResult `json:"result"`
	}](t, w)
	assert.Nil(t, resp.Result.UpsertedID)
	assert.EqualValues(t, 1, *resp.Result.MatchedCount)

	users, _ := e.store.Users.List(context.Background())
	require.Len(t, users, 1)
	assert.Equal(t, "Renamed", users[0].Name)
}

func TestUserUpsert_EmptyBodyAndBadEmail(t *testing.T) {
	e := setupServer(t, false)
	w := e.do(t, http.MethodPut, "/user/rider@example.com", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPut, "/user/not-an-email", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUserUpsert_CannotSelfPromote(t *testing.T) {
	e := setupServer(t, false)
	w := e.do(t, http.MethodPut, "/user/rider@example.com", "", map[string]any{"role": "admin"})
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodGet, "/admin/rider@example.com", "", nil)
	assert.Equal(t, map[string]bool{"admin": false}, decode[map[string]bool](t, w))
}

func TestAuth_MissingInvalidExpired(t *testing.T) {
	e := setupServer(t, false)
	valid := e.login(t, "rider@example.com")

	w := e.do(t, http.MethodGet, "/user", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/user", valid[:len(valid)-3]+"abc", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Email: "rider@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	w = e.do(t, http.MethodGet, "/user", expired, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	other, err := auth.NewTokens("another-secret", 0).Issue("rider@example.com")
	require.NoError(t, err)
	w = e.do(t, http.MethodGet, "/user", other, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/user", valid, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_MalformedHeader(t *testing.T) {
	e := setupServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/user", nil)
	req.Header.Set("Authorization", "Token abc")
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	e := setupServer(t, false)
	userToken := e.login(t, "rider@example.com")
	adminToken := e.admin(t, "boss@example.com")

	// non-admin is refused
	w := e.do(t, http.MethodPut, "/user/admin/rider@example.com", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = e.do(t, http.MethodDelete, "/product/64b7f0c2a1b2c3d4e5f60718", userToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// a valid token for an email with no stored user is refused, not a crash
	ghost, err := e.tokens.Issue("ghost@example.com")
	require.NoError(t, err)
	w = e.do(t, http.MethodPut, "/user/admin/rider@example.com", ghost, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	// admin proceeds
	w = e.do(t, http.MethodPut, "/user/admin/rider@example.com", adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res := decode[domain.WriteResult](t, w)
	assert.EqualValues(t, 1, *res.ModifiedCount)

	w = e.do(t, http.MethodGet, "/admin/rider@example.com", "", nil)
	assert.Equal(t, map[string]bool{"admin": true}, decode[map[string]bool](t, w))

	// the promoted user now passes the guard
	w = e.do(t, http.MethodDelete, "/product/64b7f0c2a1b2c3d4e5f60718", userToken, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAdminStatus_UnknownUser(t *testing.T) {
	e := setupServer(t, false)
	w := e.do(t, http.MethodGet, "/admin/nobody@example.com", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, map[string]bool{"admin": false}, decode[map[string]bool](t, w))
}

func TestProductFlow(t *testing.T) {
	e := setupServer(t, false)
	userToken := e.login(t, "rider@example.com")
	adminToken := e.admin(t, "boss@example.com")

	product := map[string]any{"name": "Chainring", "price": 45.5, "minimumQuantity": 10, "availableQuantity": 500}

	// create requires a token
	w := e.do(t, http.MethodPost, "/product", "", product)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/product", userToken, product)
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[domain.WriteResult](t, w)
	require.NotNil(t, created.InsertedID)

	// list is public
	w = e.do(t, http.MethodGet, "/product", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]domain.Product](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Chainring", list[0].Name)

	w = e.do(t, http.MethodDelete, "/product/"+created.InsertedID.Hex(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, *decode[domain.WriteResult](t, w).DeletedCount)

	// deleting again affects nothing and is not an error
	w = e.do(t, http.MethodDelete, "/product/"+created.InsertedID.Hex(), adminToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 0, *decode[domain.WriteResult](t, w).DeletedCount)

	w = e.do(t, http.MethodDelete, "/product/xyz", adminToken, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProduct_BadRequests(t *testing.T) {
	e := setupServer(t, false)
	token := e.login(t, "rider@example.com")

	w := e.do(t, http.MethodPost, "/product", token, map[string]any{"price": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, "/product", token, map[string]any{"name": "Bell", "price": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrderFlow(t *testing.T) {
	e := setupServer(t, false)
	riderToken := e.login(t, "rider@example.com")
	otherToken := e.login(t, "other@example.com")

	// create is open
	w := e.do(t, http.MethodPost, "/order", "", map[string]any{
		"email": "rider@example.com", "productName": "Chainring", "quantity": 10, "subTotal": 455,
	})
	require.Equal(t, http.StatusOK, w.Code)
	created := decode[struct {
		Success bool               `json:"success"`
		Result  domain.WriteResult `json:"result"`
	}](t, w)
	require.True(t, created.Success)
	id := created.Result.InsertedID.Hex()

	// by id is open
	w = e.do(t, http.MethodGet, "/order/"+id, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	order := decode[domain.Order](t, w)
	assert.Equal(t, "rider@example.com", order.Email)
	assert.False(t, order.Paid)

	w = e.do(t, http.MethodGet, "/order/64b7f0c2a1b2c3d4e5f60718", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// list all needs a token
	w = e.do(t, http.MethodGet, "/order", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(t, http.MethodGet, "/order", otherToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Order](t, w), 1)

	// owner lookup
	w = e.do(t, http.MethodGet, "/order/rider@example.com", riderToken, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]domain.Order](t, w), 1)

	w = e.do(t, http.MethodGet, "/order/rider@example.com", otherToken, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodGet, "/order/rider@example.com", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestOrder_MalformedIDFallsThrough(t *testing.T) {
	e := setupServer(t, false)
	token := e.login(t, "rider@example.com")

	// not 24 hex: treated as an owner key, so it needs a token
	w := e.do(t, http.MethodGet, "/order/64b7f0c2a1b2", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodGet, "/order/64b7f0c2a1b2", token, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = e.do(t, http.MethodPatch, "/order/64b7f0c2a1b2", token, map[string]any{"transactionId": "pi_1"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOrder_CreateValidation(t *testing.T) {
	e := setupServer(t, false)
	w := e.do(t, http.MethodPost, "/order", "", map[string]any{"quantity": 1})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, "/order", "", map[string]any{"email": "rider@example.com", "quantity": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentIntent(t *testing.T) {
	e := setupServer(t, false)

	w := e.do(t, http.MethodPost, "/create-payment-intent", "", map[string]any{"subTotal": 19.99})
	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[map[string]string](t, w)

	created := e.gateway.Created()
	require.Len(t, created, 1)
	assert.EqualValues(t, 1999, created[0].Amount)
	assert.Equal(t, "usd", created[0].Currency)
	assert.Equal(t, created[0].ClientSecret, resp["clientSecret"])

	w = e.do(t, http.MethodPost, "/create-payment-intent", "", map[string]any{"subTotal": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(t, http.MethodPost, "/create-payment-intent", "", map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPaymentIntent_GatewayDown(t *testing.T) {
	e := setupServer(t, false)
	e.gateway.Err = assert.AnError

	w := e.do(t, http.MethodPost, "/create-payment-intent", "", map[string]any{"subTotal": 5})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), assert.AnError.Error())
}

func TestConfirmPayment(t *testing.T) {
	e := setupServer(t, false)
	token := e.login(t, "rider@example.com")

	o := domain.Order{Email: "rider@example.com", Quantity: 1, SubTotal: 19.99}
	_, err := e.store.Orders.Create(context.Background(), &o)
	require.NoError(t, err)
	path := "/order/" + o.ID.Hex()

	w := e.do(t, http.MethodPatch, path, "", map[string]any{"transactionId": "pi_1"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPatch, path, token, map[string]any{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPatch, path, token, map[string]any{"transactionId": "pi_1"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.EqualValues(t, 1, *decode[domain.WriteResult](t, w).ModifiedCount)

	w = e.do(t, http.MethodGet, path, "", nil)
	got := decode[domain.Order](t, w)
	assert.True(t, got.Paid)
	assert.Equal(t, "pi_1", got.TransactionID)

	// a second confirmation is refused and stores nothing
	w = e.do(t, http.MethodPatch, path, token, map[string]any{"transactionId": "pi_2"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Len(t, e.mem.Payments(), 1)

	w = e.do(t, http.MethodPatch, "/order/64b7f0c2a1b2c3d4e5f60718", token, map[string]any{"transactionId": "pi_3"})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestConfirmPayment_Verified(t *testing.T) {
	e := setupServer(t, true)
	token := e.login(t, "rider@example.com")

	o := domain.Order{Email: "rider@example.com", Quantity: 1, SubTotal: 19.99}
	_, err := e.store.Orders.Create(context.Background(), &o)
	require.NoError(t, err)
	path := "/order/" + o.ID.Hex()

	w := e.do(t, http.MethodPatch, path, token, map[string]any{"transactionId": "pi_made_up"})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = e.do(t, http.MethodPost, "/create-payment-intent", "", map[string]any{"subTotal": 19.99})
	require.Equal(t, http.StatusOK, w.Code)
	intentID := e.gateway.Created()[0].ID

	w = e.do(t, http.MethodPatch, path, token, map[string]any{"transactionId": intentID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	payments := e.mem.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, 19.99, payments[0].Amount)
}

func TestConfirmPayment_OneIntentOneOrder(t *testing.T) {
	e := setupServer(t, true)
	token := e.login(t, "rider@example.com")

	small := domain.Order{Email: "rider@example.com", Quantity: 1, SubTotal: 1}
	big := domain.Order{Email: "rider@example.com", Quantity: 1, SubTotal: 5000}
	for _, o := range []*domain.Order{&small, &big} {
		_, err := e.store.Orders.Create(context.Background(), o)
		require.NoError(t, err)
	}

	w := e.do(t, http.MethodPost, "/create-payment-intent", "", map[string]any{"subTotal": 1})
	require.Equal(t, http.StatusOK, w.Code)
	intentID := e.gateway.Created()[0].ID

	// a $1 charge does not pay a $5000 order, whatever amount the client claims
	w = e.do(t, http.MethodPatch, "/order/"+big.ID.Hex(), token, map[string]any{"transactionId": intentID, "amount": 5000})
	assert.Equal(t, http.StatusPaymentRequired, w.Code)

	w = e.do(t, http.MethodPatch, "/order/"+small.ID.Hex(), token, map[string]any{"transactionId": intentID})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// the same intent cannot pay a second order of equal total
	other := domain.Order{Email: "rider@example.com", Quantity: 1, SubTotal: 1}
	_, err := e.store.Orders.Create(context.Background(), &other)
	require.NoError(t, err)
	w = e.do(t, http.MethodPatch, "/order/"+other.ID.Hex(), token, map[string]any{"transactionId": intentID})
	assert.Equal(t, http.StatusConflict, w.Code)

	for _, id := range []string{big.ID.Hex(), other.ID.Hex()} {
		w = e.do(t, http.MethodGet, "/order/"+id, "", nil)
		assert.False(t, decode[domain.Order](t, w).Paid)
	}
	payments := e.mem.Payments()
	require.Len(t, payments, 1)
	assert.Equal(t, small.ID, payments[0].OrderID)
	assert.Equal(t, 1.0, payments[0].Amount)
}

func TestReviews(t *testing.T) {
	e := setupServer(t, false)
	token := e.login(t, "rider@example.com")
	review := map[string]any{"name": "Rider", "rating": 5, "comment": "Solid crankset"}

	w := e.do(t, http.MethodPost, "/review", "", review)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = e.do(t, http.MethodPost, "/review", token, review)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/review", token, map[string]any{"rating": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodGet, "/review", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]domain.Review](t, w)
	require.Len(t, list, 1)
	assert.Equal(t, "Solid crankset", list[0].Comment)
}

func TestEmptyListsAreArrays(t *testing.T) {
	e := setupServer(t, false)
	for _, path := range []string{"/product", "/review"} {
		w := e.do(t, http.MethodGet, path, "", nil)
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, "[]", w.Body.String(), path)
	}
}

func TestRequestIDHeader(t *testing.T) {
	e := setupServer(t, false)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	e.srv.Engine().ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))

	w = e.do(t, http.MethodGet, "/", "", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))
}

func TestMapErrorToStatus(t *testing.T) {
	cases := map[error]int{
		service.ErrInvalidInput:       http.StatusBadRequest,
		service.ErrForbidden:          http.StatusForbidden,
		repository.ErrNotFound:        http.StatusNotFound,
		service.ErrAlreadyPaid:        http.StatusConflict,
		service.ErrTransactionUsed:    http.StatusConflict,
		service.ErrPaymentNotVerified: http.StatusPaymentRequired,
		assert.AnError:                http.StatusInternalServerError,
	}
	for err, want := range cases {
		assert.Equal(t, want, mapErrorToStatus(err), err.Error())
	}
}

func TestObjectIDValidatorRegistered(t *testing.T) {
	require.NoError(t, registerValidators())

	assert.NoError(t, binding.Validator.ValidateStruct(idURI{ID: "64b7f0c2a1b2c3d4e5f60718"}))
	assert.Error(t, binding.Validator.ValidateStruct(idURI{ID: "not-an-id"}))
}
