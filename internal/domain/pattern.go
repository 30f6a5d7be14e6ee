package domain

type PatternType string

const (
	PatternConfined   PatternType = "confined"
	PatternCircular   PatternType = "circular"
	PatternRepetitive PatternType = "repetitive"
	PatternPendulum   PatternType = "pendulum"
)

// PatternTypes lists every detector in evaluation order.
var PatternTypes = []PatternType{PatternConfined, PatternCircular, PatternRepetitive, PatternPendulum}
