package sd

import "errors"

var (
	errShortHeader       = errors.New("sd: message shorter than fixed header")
	errEntriesLengthBad  = errors.New("sd: entries_array_length not a multiple of entry size, or exceeds buffer")
	errOptionsLengthBad  = errors.New("sd: options_array_length exceeds buffer")
	errShortOptionHeader = errors.New("sd: option header runs past the options array")
	errShortOption       = errors.New("sd: option length runs past the options array")
	errOptionRefOOB      = errors.New("sd: entry option index/count exceeds options array")
	errShortConfigPair   = errors.New("sd: configuration option string length runs past its payload")

	// ErrUnknownServiceInstance is returned when a subscribe or find
	// targets a (service, instance) the Server hasn't offered.
	ErrUnknownServiceInstance = errors.New("sd: unknown service instance")
	// ErrNotOffering is returned by Server.Disable when nothing is offered.
	ErrNotOffering = errors.New("sd: service is not currently offered")
	// ErrFindTimedOut names a find_service whose timeout elapsed with no
	// matching OfferService. Client.FindService neither returns nor
	// delivers it: on timeout the pending find is only removed.
	ErrFindTimedOut = errors.New("sd: find_service timed out")
)
