package model

// Result is what every public print operation resolves to.
type Result struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

func OK() Result { return Result{Success: true} }

func Fail(msg string) Result { return Result{Success: false, Error: msg} }

// PrinterKind tells how a printer is reached.
type PrinterKind string

const (
	PrinterKindSpooler PrinterKind = "spooler"
	PrinterKindNetwork PrinterKind = "network"
	PrinterKindSerial  PrinterKind = "serial"
)

// PrinterInfo is one entry of listPrinters.
type PrinterInfo struct {
	Name      string      `json:"name"`
	IsDefault bool        `json:"isDefault"`
	Kind      PrinterKind `json:"kind,omitempty"`
	Address   string      `json:"address,omitempty"`
}
