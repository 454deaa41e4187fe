package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus is fixed when an order row is written
type PaymentStatus string

const (
	PaymentStatusPaid    PaymentStatus = "paid"
	PaymentStatusFailed  PaymentStatus = "failed"
	PaymentStatusPending PaymentStatus = "pending"
)

// User represents a user account
type User struct {
	ID           int64     `json:"id" gorm:"primaryKey"`
	Name         string    `json:"name" gorm:"size:100;not null"`
	Email        string    `json:"email" gorm:"size:150;uniqueIndex;not null"`
	Mobile       string    `json:"mobile" gorm:"size:15;not null;default:''"`
	PasswordHash string    `json:"-" gorm:"column:password;size:255;not null"`
	ProfileImage string    `json:"profile_image" gorm:"size:255;not null;default:''"`
	CreatedAt    time.Time `json:"created_at"`
}

// Product represents a product in the catalog
type Product struct {
	ID          int64           `json:"id" gorm:"primaryKey"`
	Name        string          `json:"name" gorm:"size:200;not null;index"`
	Description string          `json:"description" gorm:"size:2000;not null;default:''"`
	Price       decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`
	Stock       int             `json:"stock" gorm:"not null;default:0"`
	Rating      decimal.Decimal `json:"rating" gorm:"type:decimal(2,1);not null;default:0"`
	Category    string          `json:"category" gorm:"size:100;not null;index"`
	ImageURL    string          `json:"image_url" gorm:"size:255;not null;default:''"`
	CreatedAt   time.Time       `json:"created_at"`
}

// CartLine is one (user, product, quantity) row of the cart table
type CartLine struct {
	ID        int64     `json:"cart_id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	ProductID int64     `json:"product_id" gorm:"not null;uniqueIndex:idx_cart_user_product"`
	Quantity  int       `json:"quantity" gorm:"not null;default:1"`
	AddedAt   time.Time `json:"added_at" gorm:"autoCreateTime"`

	User    *User    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Product *Product `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

func (CartLine) TableName() string { return "cart" }

// Favorite marks a product as liked by a user
type Favorite struct {
	ID        int64     `json:"id" gorm:"primaryKey"`
	UserID    int64     `json:"user_id" gorm:"not null;uniqueIndex:idx_favorite_user_product"`
	ProductID int64     `json:"product_id" gorm:"not null;uniqueIndex:idx_favorite_user_product"`
	AddedAt   time.Time `json:"added_at" gorm:"autoCreateTime"`

	User    *User    `json:"-" gorm:"constraint:OnDelete:CASCADE"`
	Product *Product `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// Order represents a recorded checkout attempt.
// GatewayOrderID is indexed but deliberately not unique.
type Order struct {
	ID             int64           `json:"id" gorm:"primaryKey"`
	UserID         int64           `json:"user_id" gorm:"not null;index"`
	TotalAmount    decimal.Decimal `json:"total_amount" gorm:"type:decimal(10,2);not null"`
	PaymentStatus  PaymentStatus   `json:"payment_status" gorm:"type:varchar(20);not null;default:pending"`
	TransactionID  string          `json:"transaction_id" gorm:"size:100;not null;default:''"`
	GatewayOrderID string          `json:"gateway_order_id" gorm:"size:100;not null;default:'';index"`
	CreatedAt      time.Time       `json:"created_at"`

	ItemCount int         `json:"item_count" gorm:"-"`
	Items     []OrderItem `json:"items,omitempty" gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	User      *User       `json:"-" gorm:"constraint:OnDelete:CASCADE"`
}

// OrderItem represents an item in an order; Price is the unit price at purchase
type OrderItem struct {
	ID        int64           `json:"id" gorm:"primaryKey"`
	OrderID   int64           `json:"order_id" gorm:"not null;index"`
	ProductID int64           `json:"product_id" gorm:"not null;index"`
	Quantity  int             `json:"quantity" gorm:"not null"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(10,2);not null"`

	Product *Product `json:"-" gorm:"constraint:OnDelete:RESTRICT"`
}

// CartItem is a cart line joined with the live product data
type CartItem struct {
	CartID    int64           `json:"cart_id"`
	ProductID int64           `json:"product_id"`
	Name      string          `json:"name"`
	ImageURL  string          `json:"image_url"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
}

// Subtotal returns price x quantity at full precision
func (c CartItem) Subtotal() decimal.Decimal {
	return c.Price.Mul(decimal.NewFromInt(int64(c.Quantity)))
}

// CartSummary is the cart total and the number of units in it
type CartSummary struct {
	Total decimal.Decimal
	Count int
}

// CartResponse represents a cart with its items
type CartResponse struct {
	Items     []CartItem `json:"items"`
	Total     float64    `json:"total"`
	CartCount int        `json:"cart_count"`
}

// CheckoutSession is what the client needs to open the gateway checkout
type CheckoutSession struct {
	GatewayOrderID string
	AmountMinor    int64
	Currency       string
	Total          decimal.Decimal
}

// Profile is a user with their order history and favorites
type Profile struct {
	User      *User     `json:"user"`
	Orders    []Order   `json:"orders"`
	Favorites []Product `json:"favorites"`
	CartCount int       `json:"cart_count"`
}

// AddToCartRequest represents a request to add item to cart.
// A missing quantity means one unit.
type AddToCartRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  *int  `json:"quantity"`
}

// UpdateCartRequest sets the quantity of a cart line
type UpdateCartRequest struct {
	CartID   int64 `json:"cart_id"`
	Quantity int   `json:"quantity"`
}

// RemoveFromCartRequest removes a cart line
type RemoveFromCartRequest struct {
	CartID int64 `json:"cart_id"`
}

// ToggleFavoriteRequest flips a product in or out of favorites
type ToggleFavoriteRequest struct {
	ProductID int64 `json:"product_id"`
}

// VerifyPaymentRequest carries the identifiers returned by the gateway checkout
type VerifyPaymentRequest struct {
	GatewayOrderID string `json:"razorpay_order_id"`
	PaymentID      string `json:"razorpay_payment_id"`
	Signature      string `json:"razorpay_signature"`
}

// UpdateProfileRequest changes the editable profile fields
type UpdateProfileRequest struct {
	Name   string `json:"name"`
	Mobile string `json:"mobile"`
}
