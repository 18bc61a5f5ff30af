package shipping

import "errors"

var (
	// ErrInvalidQuantities indicates the proposed shipment failed
	// quantity validation after the transactional re-check.
	ErrInvalidQuantities = errors.New("shipping: quantities exceed open invoice lines")
	// ErrBadTransition indicates a status move the lifecycle forbids.
	ErrBadTransition = errors.New("shipping: status transition not allowed")
	// ErrUnknownStatus indicates an unrecognized status value.
	ErrUnknownStatus = errors.New("shipping: unknown status")
	// ErrNoItems indicates a shipment without positions.
	ErrNoItems = errors.New("shipping: shipment requires at least one item")
)
