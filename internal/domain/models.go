package domain

import "go.mongodb.org/mongo-driver/bson/primitive"

// Role уровень доступа пользователя
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// User покупатель или администратор магазина. Email уникален.
type User struct {
	ID    primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Email string             `bson:"email" json:"email"`
	Name  string             `bson:"name,omitempty" json:"name,omitempty"`
	Image string             `bson:"image,omitempty" json:"image,omitempty"`
	Role  Role               `bson:"role,omitempty" json:"role,omitempty"`
}

// IsAdmin reports whether the stored role grants admin routes.
func (u *User) IsAdmin() bool { return u != nil && u.Role == RoleAdmin }

// UserProfile поля профиля, которые пользователь может менять сам
type UserProfile struct {
	Name  string `bson:"name,omitempty" json:"name,omitempty"`
	Image string `bson:"image,omitempty" json:"image,omitempty"`
}

// Product велосипедная деталь в каталоге
type Product struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name              string             `bson:"name" json:"name"`
	Description       string             `bson:"description,omitempty" json:"description,omitempty"`
	Image             string             `bson:"image,omitempty" json:"image,omitempty"`
	Price             float64            `bson:"price" json:"price"`
	MinimumQuantity   int64              `bson:"minimumQuantity" json:"minimumQuantity"`
	AvailableQuantity int64              `bson:"availableQuantity" json:"availableQuantity"`
}

// Order заказ покупателя. Paid меняется false→true только при подтверждении оплаты.
type Order struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Email         string             `bson:"email" json:"email"`
	Name          string             `bson:"name,omitempty" json:"name,omitempty"`
	Phone         string             `bson:"phone,omitempty" json:"phone,omitempty"`
	Address       string             `bson:"address,omitempty" json:"address,omitempty"`
	ProductID     string             `bson:"productId,omitempty" json:"productId,omitempty"`
	ProductName   string             `bson:"productName,omitempty" json:"productName,omitempty"`
	Quantity      int64              `bson:"quantity" json:"quantity"`
	SubTotal      float64            `bson:"subTotal" json:"subTotal"`
	Paid          bool               `bson:"paid" json:"paid"`
	TransactionID string             `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
}

// Review отзыв покупателя
type Review struct {
	ID      primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	Name    string             `bson:"name,omitempty" json:"name,omitempty"`
	Email   string             `bson:"email,omitempty" json:"email,omitempty"`
	Image   string             `bson:"image,omitempty" json:"image,omitempty"`
	Rating  int                `bson:"rating" json:"rating"`
	Comment string             `bson:"comment" json:"comment"`
}

// Payment запись о подтверждённой транзакции процессора
type Payment struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id,omitempty"`
	OrderID       primitive.ObjectID `bson:"orderId" json:"orderId"`
	TransactionID string             `bson:"transactionId" json:"transactionId"`
	Email         string             `bson:"email,omitempty" json:"email,omitempty"`
	Amount        float64            `bson:"amount,omitempty" json:"amount,omitempty"`
}

// WriteResult подтверждение записи от хранилища; отдаётся клиенту как есть
type WriteResult struct {
	Acknowledged  bool                `json:"acknowledged"`
	InsertedID    *primitive.ObjectID `json:"insertedId,omitempty"`
	MatchedCount  *int64              `json:"matchedCount,omitempty"`
	ModifiedCount *int64              `json:"modifiedCount,omitempty"`
	UpsertedCount *int64              `json:"upsertedCount,omitempty"`
	UpsertedID    *primitive.ObjectID `json:"upsertedId,omitempty"`
	DeletedCount  *int64              `json:"deletedCount,omitempty"`
}

// Inserted builds the acknowledgement of a single-document insert.
func Inserted(id primitive.ObjectID) WriteResult {
	return WriteResult{Acknowledged: true, InsertedID: &id}
}

// Updated builds the acknowledgement of a single-document update.
// upsertedID is nil unless the update created a document.
func Updated(matched, modified int64, upsertedID *primitive.ObjectID) WriteResult {
	var upserted int64
	if upsertedID != nil {
		upserted = 1
	}
	return WriteResult{
		Acknowledged:  true,
		MatchedCount:  &matched,
		ModifiedCount: &modified,
		UpsertedCount: &upserted,
		UpsertedID:    upsertedID,
	}
}

// Deleted builds the acknowledgement of a single-document delete.
func Deleted(n int64) WriteResult {
	return WriteResult{Acknowledged: true, DeletedCount: &n}
}
