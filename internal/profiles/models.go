package profiles

import "time"

type Profile struct {
	ID                 string    `json:"id"`
	Email              string    `json:"email"`
	PasswordHash       string    `json:"-"`
	FullName           string    `json:"full_name"`
	Gender             string    `json:"gender"`
	Role               string    `json:"role"`
	RegistrationNumber *string   `json:"registration_number,omitempty"`
	WorkerCode         *string   `json:"worker_code,omitempty"`
	Hostel             *string   `json:"hostel,omitempty"`
	Floor              *string   `json:"floor,omitempty"`
	AssignedHostel     *string   `json:"assigned_hostel,omitempty"`
	TotalWashes        int       `json:"total_washes"`
	WashesLeft         int       `json:"washes_left"`
	CreatedAt          time.Time `json:"created_at"`
}
