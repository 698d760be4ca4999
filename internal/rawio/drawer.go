package rawio

const (
	esc = 0x1B
	// ESC p m t1 t2: pulse drawer pin m, on for t1*2 ms, off for t2*2 ms
	drawerKick = 0x70

	// 96 ms on, 120 ms off
	drawerOnTime  = 0x30
	drawerOffTime = 0x3C
)

// drawerCommand is pin 2 followed by pin 5, so either wiring opens.
var drawerCommand = [...]byte{
	esc, drawerKick, 0x00, drawerOnTime, drawerOffTime,
	esc, drawerKick, 0x01, drawerOnTime, drawerOffTime,
}

// DrawerCommand returns a fresh copy of the drawer-kick sequence.
func DrawerCommand() []byte {
	cmd := drawerCommand
	return cmd[:]
}
