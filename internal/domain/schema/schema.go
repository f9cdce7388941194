// Package schema holds the fixed feature layout and class labels the bean
// classifier was trained on.
package schema

import (
	"math"
	"strconv"
)

// Feature describes one numeric model input and the range the form offers for it.
type Feature struct {
	Name     string  `json:"name"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Decimals int     `json:"decimals"`
}

// Features lists the model inputs in the order the classifier expects them.
var Features = []Feature{
	{Name: "Area", Min: 20000, Max: 250000, Decimals: 0},
	{Name: "Perimeter", Min: 500, Max: 2000, Decimals: 2},
	{Name: "MajorAxisLength", Min: 200, Max: 750, Decimals: 2},
	{Name: "MinorAxisLength", Min: 150, Max: 450, Decimals: 2},
	{Name: "AspectRation", Min: 1.0, Max: 2.5, Decimals: 4},
	{Name: "Eccentricity", Min: 0.2, Max: 0.99, Decimals: 4},
	{Name: "ConvexArea", Min: 20000, Max: 250000, Decimals: 0},
	{Name: "EquivDiameter", Min: 150, Max: 550, Decimals: 1},
	{Name: "Extent", Min: 0.4, Max: 0.9, Decimals: 3},
	{Name: "Solidity", Min: 0.9, Max: 0.99, Decimals: 4},
	{Name: "roundness", Min: 0.5, Max: 0.95, Decimals: 4},
	{Name: "Compactness", Min: 0.5, Max: 0.9, Decimals: 4},
	{Name: "ShapeFactor1", Min: 0.002, Max: 0.009, Decimals: 5},
	{Name: "ShapeFactor2", Min: 0.0005, Max: 0.0025, Decimals: 6},
	{Name: "ShapeFactor3", Min: 0.4, Max: 0.9, Decimals: 4},
	{Name: "ShapeFactor4", Min: 0.9, Max: 0.999, Decimals: 5},
}

// Labels maps classifier output indices to cultivar names.
var Labels = []string{"Barbunya", "Bombay", "Cali", "Dermason", "Horoz", "Seker", "Sira"}

// NumFeatures and NumClasses fix the vector sizes exchanged with the model.
const (
	NumFeatures = 16
	NumClasses  = 7
)

// Names returns the feature names in declaration order.
func Names() []string {
	names := make([]string, len(Features))
	for i, f := range Features {
		names[i] = f.Name
	}
	return names
}

// Lookup returns the feature with the given exact name.
func Lookup(name string) (Feature, bool) {
	for _, f := range Features {
		if f.Name == name {
			return f, true
		}
	}
	return Feature{}, false
}

// Label returns the cultivar name for a classifier index.
func Label(index int) (string, bool) {
	if index < 0 || index >= len(Labels) {
		return "", false
	}
	return Labels[index], true
}

// Default returns the midpoint of the feature range rounded to its decimals.
func (f Feature) Default() float64 {
	return Round((f.Min+f.Max)/2, f.Decimals)
}

// Step returns the HTML input step matching the feature precision, e.g. "0.01".
func (f Feature) Step() string {
	return Step(f.Decimals)
}

// Defaults computes the form default for every feature.
func Defaults() map[string]float64 {
	out := make(map[string]float64, len(Features))
	for _, f := range Features {
		out[f.Name] = f.Default()
	}
	return out
}

// Round rounds v to the given number of decimal digits. The exact binary value
// is rounded, with exact ties going to the even digit.
func Round(v float64, decimals int) float64 {
	if decimals < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	rounded, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', decimals, 64), 64)
	if err != nil {
		return v
	}
	return rounded
}

// Step formats the smallest increment for the given precision.
func Step(decimals int) string {
	if decimals <= 0 {
		return "1"
	}
	return strconv.FormatFloat(math.Pow10(-decimals), 'f', decimals, 64)
}

// Format renders v with the feature precision, as shown in the form.
func (f Feature) Format(v float64) string {
	return strconv.FormatFloat(v, 'f', f.Decimals, 64)
}
