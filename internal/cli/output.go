package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	"github.com/rl1809/cartsync/internal/core/service"
)

const (
	ExitSuccess      = 0
	ExitFailure      = 1 // the cart service or the engine rejected the operation
	ExitCommandError = 2 // bad arguments or configuration
)

// ExitError carries the exit code for a failed command. Error returns only
// the user-facing message; the cause stays reachable through Unwrap.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewExitError(code int, message string) *ExitError {
	return &ExitError{Code: code, Message: message}
}

func WrapExitError(code int, message string, err error) *ExitError {
	return &ExitError{Code: code, Message: message, Err: err}
}

// GetExitCode returns ExitFailure for errors that carry no code.
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

func writeJSONValue(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeView(w io.Writer, format string, v service.View) error {
	if format == "json" {
		return writeJSONValue(w, v)
	}

	if len(v.Items) == 0 {
		_, err := fmt.Fprintln(w, "Cart is empty")
		return err
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tPRODUCT\tQTY\tUNIT PRICE\tSUBTOTAL")
	for _, it := range v.Items {
		subtotal := it.Product.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity)))
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			it.ProductID, it.Product.Name, it.Quantity,
			it.Product.UnitPrice.StringFixed(2), subtotal.StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Items: %d  Total: %s\n", v.ItemCount, v.Total.StringFixed(2))
	return err
}
