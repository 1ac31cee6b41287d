package cnst

const (
	AppName     = "algoroom"
	CommandName = "algoroom"
)
