package users

import (
	"strings"
	"time"
)

type Role string

const (
	RoleTeacher Role = "teacher"
	RoleStudent Role = "student"
)

// Profile — анкета, заполняемая при онбординге.
type Profile struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Role      Role      `json:"role"`
	Subject   string    `json:"subject"`
	Level     string    `json:"level"`
	Interests []string  `json:"interests"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Complete — для создания и комментариев нужны имя и фамилия.
func (p *Profile) Complete() bool {
	return p != nil && strings.TrimSpace(p.FirstName) != "" && strings.TrimSpace(p.LastName) != ""
}

func (p *Profile) DisplayName() string {
	return strings.TrimSpace(p.FirstName) + " " + strings.TrimSpace(p.LastName)
}

// WithExercises — строка админского списка пользователей.
type WithExercises struct {
	Profile
	ExercisesCount int `json:"exercisesCount"`
}

type Counts struct {
	Users    int `json:"totalUsers"`
	Teachers int `json:"totalTeachers"`
	Students int `json:"totalStudents"`
}

func normalize(p *Profile) {
	if p.Role != RoleStudent {
		p.Role = RoleTeacher
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
}
