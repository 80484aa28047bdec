package enrich

// Saturation points for the complexity terms. A tender at or above these
// values contributes the full weight of that term.
const (
	complexityValueCap = 10_000_000 // EUR
	complexityDescCap  = 1000       // characters
	complexityCodesCap = 4
)

// Term weights, summing to 1.
const (
	weightValue = 0.4
	weightDesc  = 0.3
	weightCodes = 0.3
)

// Complexity scores how demanding a tender is, in [0,1]. It is a weighted sum
// of three independently clipped terms, so it is monotonically non-decreasing
// in estimated value, description length, and CPV code count, and no single
// term can push the total past 1.
func Complexity(estimatedValue float64, descriptionLen, codeCount int) float64 {
	v := clip01(estimatedValue / complexityValueCap)
	d := clip01(float64(descriptionLen) / complexityDescCap)
	c := clip01(float64(codeCount) / complexityCodesCap)

	return weightValue*v + weightDesc*d + weightCodes*c
}

func clip01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
