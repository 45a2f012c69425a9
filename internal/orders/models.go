package orders

import "time"

type ClothingItem struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PriceCents  int    `json:"price_cents"`
	Description string `json:"description,omitempty"`
	Gender      string `json:"gender"`
}

type Order struct {
	ID           string     `json:"id"`
	StudentID    string     `json:"student_id"`
	Status       Status     `json:"status"`
	TotalCents   int        `json:"total_cents"`
	PickupDate   time.Time  `json:"pickup_date"`
	DeliveryDate *time.Time `json:"delivery_date"`
	Notes        *string    `json:"notes"`
	WorkerID     *string    `json:"worker_id"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

type OrderItem struct {
	ID         string       `json:"id"`
	Quantity   int          `json:"quantity"`
	PriceCents int          `json:"price_cents"`
	Item       ClothingItem `json:"clothing_item"`
}

// Student is the slice of a profile that order views display. The validate
// tags define what a structurally valid related row looks like; anything
// less gets replaced by FallbackStudent.
type Student struct {
	FullName    string `json:"full_name" validate:"required"`
	Gender      string `json:"gender" validate:"required"`
	Hostel      string `json:"hostel" validate:"required"`
	Floor       string `json:"floor" validate:"required"`
	WashesLeft  int    `json:"washes_left"`
	TotalWashes int    `json:"total_washes"`
}

// OrderView is the denormalized row the dashboards render: order plus its
// student relation and line items. Items is nil when the item fetch failed.
type OrderView struct {
	Order
	Student Student     `json:"student"`
	Items   []OrderItem `json:"items"`
}

func FallbackStudent() Student {
	return Student{
		FullName:    "Unknown Student",
		Gender:      "unknown",
		Hostel:      "N/A",
		Floor:       "N/A",
		WashesLeft:  0,
		TotalWashes: 40,
	}
}
