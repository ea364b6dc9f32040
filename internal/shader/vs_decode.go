package shader

// Vertex shader opcodes of the supported straight-line subset.
const (
	opADD   = 0x00
	opDP3   = 0x01
	opDP4   = 0x02
	opDPH   = 0x03
	opDST   = 0x04
	opEX2   = 0x05
	opLG2   = 0x06
	opMUL   = 0x08
	opSGE   = 0x09
	opSLT   = 0x0a
	opFLR   = 0x0b
	opMAX   = 0x0c
	opMIN   = 0x0d
	opRCP   = 0x0e
	opRSQ   = 0x0f
	opMOVA  = 0x12
	opMOV   = 0x13
	opDPHI  = 0x18
	opDSTI  = 0x19
	opSGEI  = 0x1a
	opSLTI  = 0x1b
	opNOP   = 0x21
	opEND   = 0x22
	opMADI  = 0x30 // through 0x37
	opMAD   = 0x38 // through 0x3f
	opMADLo = opMADI
)

type instr uint32

func (i instr) opcode() uint32 { return uint32(i) >> 26 }

func (i instr) isMAD() bool { return i.opcode() >= opMADLo }

// inverted reports whether the wide source field is the second operand.
func (i instr) inverted() bool {
	switch op := i.opcode(); {
	case op == opDPHI, op == opDSTI, op == opSGEI, op == opSLTI:
		return true
	case op >= opMADI && op < opMAD:
		return true
	}
	return false
}

// operands decodes the swizzle index, sources, address register index and
// destination. The source that honors the address offset is reported by
// offsetSrc (1-based).
func (i instr) operands() (desc uint32, src [3]uint32, addr uint32, dest uint32, offsetSrc int) {
	v := uint32(i)
	if i.isMAD() {
		desc = v & 0x1f
		src[0] = (v >> 17) & 0x1f
		if i.inverted() {
			src[1] = (v >> 12) & 0x1f
			src[2] = (v >> 5) & 0x7f
			offsetSrc = 3
		} else {
			src[1] = (v >> 10) & 0x7f
			src[2] = (v >> 5) & 0x1f
			offsetSrc = 2
		}
		return desc, src, (v >> 22) & 3, (v >> 24) & 0x1f, offsetSrc
	}
	desc = v & 0x7f
	if i.inverted() {
		src[0] = (v >> 14) & 0x1f
		src[1] = (v >> 7) & 0x7f
		offsetSrc = 2
	} else {
		src[0] = (v >> 12) & 0x7f
		src[1] = (v >> 7) & 0x1f
		offsetSrc = 1
	}
	return desc, src, (v >> 19) & 3, (v >> 21) & 0x1f, offsetSrc
}

func supported(op uint32) bool {
	switch op {
	case opADD, opDP3, opDP4, opDPH, opDST, opEX2, opLG2, opMUL, opSGE, opSLT,
		opFLR, opMAX, opMIN, opRCP, opRSQ, opMOVA, opMOV, opDPHI, opDSTI, opSGEI,
		opSLTI, opNOP, opEND:
		return true
	}
	return op >= opMADLo
}

// scanProgram walks the program from entry to END. It returns the index
// after END and the number of swizzle patterns referenced, or false when
// the program leaves the supported subset.
func scanProgram(code []uint32, entry uint32) (end, swizzles int, ok bool) {
	for pc := int(entry); pc < len(code); pc++ {
		in := instr(code[pc])
		op := in.opcode()
		if !supported(op) {
			return 0, 0, false
		}
		switch op {
		case opEND:
			return pc + 1, swizzles, true
		case opNOP:
			continue
		}
		desc, _, _, _, _ := in.operands()
		swizzles = max(swizzles, int(desc)+1)
	}
	return 0, 0, false
}

// swizzle is an operand descriptor.
type swizzle uint32

func (s swizzle) destEnabled(c int) bool { return uint32(s)&(1<<uint(3-c)) != 0 }

// negate reports whether source n (0-based) is negated.
func (s swizzle) negate(n int) bool {
	return uint32(s)&(1<<[3]uint{4, 13, 22}[n]) != 0
}

// selector returns the component of source n read for component c.
func (s swizzle) selector(n, c int) int {
	shift := [3]uint{11, 20, 29}[n] - 2*uint(c)
	return int(uint32(s)>>shift) & 3
}
