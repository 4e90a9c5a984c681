package body

import "fmt"

// Fault records a recovered numerical problem on one body.
type Fault struct {
	Body   Handle `json:"body"`
	Name   string `json:"name"`
	Stage  string `json:"stage"`
	Detail string `json:"detail"`
}

func (f Fault) Error() string {
	return fmt.Sprintf("numerical fault on body %q during %s: %s", f.Name, f.Stage, f.Detail)
}
