package inputs

// GameLogicDivider is the factor at which PrepareValue is the identity.
const GameLogicDivider = 10.0

// ValidateFactor returns a *FactorError unless factor is strictly positive.
func ValidateFactor(factor float64) error {
	// !(factor > 0) also rejects NaN.
	if !(factor > 0) {
		return &FactorError{Factor: factor}
	}
	return nil
}

// PrepareValue scales a raw sensor reading into a game value:
// sensorValue * factor / GameLogicDivider.
func PrepareValue(sensorValue int, factor float64) (float64, error) {
	if err := ValidateFactor(factor); err != nil {
		return 0, err
	}
	return float64(sensorValue) * (factor / GameLogicDivider), nil
}
