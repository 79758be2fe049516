package lorahal

// Registers frames SX127x register access on top of a Transport. The first
// byte of every frame is the register address with bit 7 set for writes.
//
// Registers reuses internal one byte buffers and is not safe for concurrent
// use.
type Registers struct {
	t   Transport
	op  [1]byte
	val [1]byte
}

func NewRegisters(t Transport) *Registers {
	return &Registers{t: t}
}

func (r *Registers) ReadRegister(reg Register) (byte, error) {
	r.op[0] = byte(reg) & regAddrMask
	if err := r.t.Read(r.op[:], r.val[:]); err != nil {
		return 0, err
	}
	return r.val[0], nil
}

func (r *Registers) WriteRegister(reg Register, bytes ...byte) error {
	r.op[0] = byte(reg) | regWriteBit
	return r.t.Write(r.op[:], bytes)
}

// ReadBurst reads len(buf) consecutive bytes starting at reg. For RegFifo the
// chip keeps the address fixed and advances its FIFO pointer instead.
func (r *Registers) ReadBurst(reg Register, buf []byte) error {
	r.op[0] = byte(reg) & regAddrMask
	return r.t.Read(r.op[:], buf)
}

func (r *Registers) WriteBurst(reg Register, buf []byte) error {
	return r.WriteRegister(reg, buf...)
}
