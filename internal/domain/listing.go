package domain

// Approval is the buyer-facing visibility flag derived from QA status.
// Buyer surfaces read this flag, never the QA status itself.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

type Listing struct {
	ID          string  `db:"id" json:"id"`
	SellerID    string  `db:"seller_id" json:"sellerId"`
	Title       string  `db:"title" json:"title"`
	Description string  `db:"description" json:"description,omitempty"`
	Category    string  `db:"category" json:"category,omitempty"`
	Price       float64 `db:"price" json:"price"`
	Stock       int     `db:"stock" json:"stock"`
	ImagesJSON  string  `db:"images_json" json:"imagesJson,omitempty"`
	Approval    string  `db:"approval" json:"approval"` // pending | approved | rejected
	CreatedAt   string  `db:"created_at" json:"createdAt"`
	UpdatedAt   string  `db:"updated_at" json:"updatedAt,omitempty"`
}
