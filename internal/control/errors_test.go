package control

import "errors"

var errTest = errors.New("simulated write error")
