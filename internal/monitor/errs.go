package monitor

var _ error = AlreadyRunningError{}

type AlreadyRunningError struct{}

func (err AlreadyRunningError) Error() string {
	return "monitor is already running"
}

type NotRunningError struct{}

func (err NotRunningError) Error() string {
	return "monitor is not running"
}
