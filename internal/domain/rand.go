package domain

// Rand is the random source used for synthetic users, trades and the price
// walk. *math/rand/v2.Rand satisfies it; tests inject seeded sources.
type Rand interface {
	Float64() float64
	IntN(n int) int
}
