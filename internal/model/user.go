package model

type User struct {
	ID         string `json:"id"`
	FullName   string `json:"full_name"`
	Email      string `json:"email"`
	USN        string `json:"usn"`
	Semester   int    `json:"semester"`
	Department string `json:"department"`
	IsVerified bool   `json:"is_verified"`
}

type Signup struct {
	FullName   string `json:"full_name" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=6"`
	USN        string `json:"usn" validate:"required"`
	Semester   int    `json:"semester" validate:"required,min=1"`
	Department string `json:"department" validate:"required"`
}
