package subscriptions

import (
	"errors"
	"fmt"
)

// Unlimited — значение лимита и счётчика для безлимитного тарифа.
const Unlimited = -1

const periodDays = 30

var ErrInvalidPlan = errors.New("subscriptions: invalid plan")

type Limits struct {
	ExerciseViews    int  `json:"exerciseViews"`
	ExerciseCreation int  `json:"exerciseCreation"`
	CommunityAccess  bool `json:"communityAccess"`
	Analytics        bool `json:"analytics"`
}

type Plan struct {
	Tier        Tier     `json:"id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	PriceCents  int      `json:"priceCents"`
	Features    []string `json:"features"`
	Limits      Limits   `json:"limits"`
}

// Unlimited сообщает, безлимитен ли тариф для действия.
func (p Plan) Unlimited(a Action) bool {
	return p.limit(a) == Unlimited
}

func (p Plan) limit(a Action) int {
	if a == ActionCreate {
		return p.Limits.ExerciseCreation
	}
	return p.Limits.ExerciseViews
}

// каталог статичен, меняется только релизом
var catalog = []Plan{
	{
		Tier:        TierFree,
		Name:        "Gratuit",
		Description: "Pour découvrir la plateforme",
		PriceCents:  0,
		Features:    []string{"5 exercices consultables", "Accès au catalogue"},
		Limits:      Limits{ExerciseViews: 5, ExerciseCreation: 0},
	},
	{
		Tier:        TierPremium,
		Name:        "Premium",
		Description: "Pour les enseignants réguliers",
		PriceCents:  699,
		Features:    []string{"50 exercices consultables", "20 créations par mois", "Communauté"},
		Limits:      Limits{ExerciseViews: 50, ExerciseCreation: 20, CommunityAccess: true},
	},
	{
		Tier:        TierPro,
		Name:        "Pro",
		Description: "Sans limite",
		PriceCents:  999,
		Features:    []string{"Consultation illimitée", "Création illimitée", "Communauté", "Statistiques avancées"},
		Limits:      Limits{ExerciseViews: Unlimited, ExerciseCreation: Unlimited, CommunityAccess: true, Analytics: true},
	},
}

// Plans возвращает копию каталога в порядке free, premium, pro.
func Plans() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

func LookupPlan(t Tier) (Plan, error) {
	for _, p := range catalog {
		if p.Tier == t {
			return p, nil
		}
	}
	return Plan{}, fmt.Errorf("%w: %q", ErrInvalidPlan, t)
}

func mustPlan(t Tier) Plan {
	p, err := LookupPlan(t)
	if err != nil {
		panic(err)
	}
	return p
}
