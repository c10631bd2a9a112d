// Package hijri converts tabular Islamic (Hijri) calendar dates to
// Gregorian dates via Julian Day Number arithmetic.
//
// This is the arithmetic/tabular approximation only. It does not model
// sighting-based variants such as Umm al-Qura, so results may differ by a
// day or two from officially published correspondences.
package hijri

import "time"

// gregorianCutover is the first Julian Day Number of the Gregorian
// calendar (1582-10-15). Days before it resolve on the proleptic Julian
// calendar.
const gregorianCutover = 2299161

// Date is a Hijri calendar date. Day is expected in [1,30], Month in
// [1,12] and Year positive; the conversion functions do not validate
// these ranges and out-of-range values produce out-of-range results.
type Date struct {
	Day   int `json:"day"`
	Month int `json:"month"`
	Year  int `json:"year"`
}

// JDN returns the Julian Day Number for the date using the closed-form
// tabular Islamic calendar formula.
func (d Date) JDN() int {
	return (11*d.Year+3)/30 + 354*d.Year + 30*d.Month - (d.Month-1)/2 + d.Day + 1948440 - 385
}

// Gregorian returns the Gregorian date for the Hijri date as a UTC
// midnight time.
func (d Date) Gregorian() time.Time {
	return FromJulianDay(float64(d.JDN()))
}

// FromJulianDay converts a Julian Day value to a calendar date at UTC
// midnight. Fractional days are truncated. Values before the 1582
// cutover resolve on the Julian calendar.
func FromJulianDay(jd float64) time.Time {
	jd += 0.5
	z := int(jd)
	f := jd - float64(z)

	a := z
	if z >= gregorianCutover {
		alpha := int((float64(z) - 1867216.25) / 36524.25)
		a = z + 1 + alpha - alpha/4
	}

	b := a + 1524
	c := int((float64(b) - 122.1) / 365.25)
	d := int(365.25 * float64(c))
	e := int(float64(b-d) / 30.6001)

	day := int(float64(b-d-int(30.6001*float64(e))) + f)

	month := e - 1
	if e >= 14 {
		month = e - 13
	}

	year := c - 4716
	if month <= 2 {
		year = c - 4715
	}

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}
