package main

import (
	"fmt"
	"strconv"
	"strings"
)

// floatList is a comma separated list of floats.
type floatList []float64

func (l *floatList) String() string {
	if l == nil {
		return ""
	}
	values := make([]string, len(*l))
	for i, v := range *l {
		values[i] = strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strings.Join(values, ",")
}

func (l *floatList) Set(s string) error {
	var values floatList
	for _, field := range strings.Split(s, ",") {
		v, err := strconv.ParseFloat(strings.TrimSpace(field), 64)
		if err != nil {
			return fmt.Errorf("invalid value %q: %w", field, err)
		}
		values = append(values, v)
	}
	*l = values
	return nil
}
