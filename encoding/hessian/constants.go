package hessian

// Bytecodes of the Hessian 2.0 wire format.
const (
	bcBinary       byte = 'B'
	bcBinaryChunk  byte = 'A'
	bcBinaryDirect byte = 0x20
	bcBinaryShort  byte = 0x34

	bcClassDef byte = 'C'

	bcDate       byte = 0x4a
	bcDateMinute byte = 0x4b

	bcDouble      byte = 'D'
	bcDoubleZero  byte = 0x5b
	bcDoubleOne   byte = 0x5c
	bcDoubleByte  byte = 0x5d
	bcDoubleShort byte = 0x5e
	bcDoubleMill  byte = 0x5f

	bcEnd byte = 'Z'

	bcFalse byte = 'F'
	bcTrue  byte = 'T'
	bcNull  byte = 'N'

	bcInt          byte = 'I'
	bcIntZero      byte = 0x90
	bcIntByteZero  byte = 0xc8
	bcIntShortZero byte = 0xd4

	bcListVariable        byte = 0x55
	bcListFixed           byte = 'V'
	bcListVariableUntyped byte = 0x57
	bcListFixedUntyped    byte = 0x58
	bcListDirect          byte = 0x70
	bcListDirectUntyped   byte = 0x78

	bcLong          byte = 'L'
	bcLongInt       byte = 0x59
	bcLongZero      byte = 0xe0
	bcLongByteZero  byte = 0xf8
	bcLongShortZero byte = 0x3c

	bcMap        byte = 'M'
	bcMapUntyped byte = 'H'

	bcObject       byte = 'O'
	bcObjectDirect byte = 0x60

	bcRef byte = 0x51

	bcString       byte = 'S'
	bcStringChunk  byte = 'R'
	bcStringDirect byte = 0x00
	bcStringShort  byte = 0x30
)

// Envelope framing.
const (
	bcHeader     byte = 'H'
	bcCall       byte = 'C'
	bcReply      byte = 'R'
	bcFault      byte = 'F'
	bcTerminator byte = 'z'

	versionMajor byte = 0x02
	versionMinor byte = 0x00
)

// Range boundaries selecting between the compact encodings.
const (
	intDirectMin = -0x10
	intDirectMax = 0x2f
	intByteMin   = -0x800
	intByteMax   = 0x7ff
	intShortMin  = -0x40000
	intShortMax  = 0x3ffff

	longDirectMin = -0x08
	longDirectMax = 0x0f
	longByteMin   = -0x800
	longByteMax   = 0x7ff
	longShortMin  = -0x40000
	longShortMax  = 0x3ffff

	int32Min = -0x80000000
	int32Max = 0x7fffffff

	stringDirectMax = 0x1f
	stringShortMax  = 0x3ff
	binaryDirectMax = 0x0f
	binaryShortMax  = 0x3ff
	listDirectMax   = 0x07
	objectDirectMax = 0x0f

	// chunkSize is the largest payload carried by a single string or
	// binary segment.
	chunkSize = 0x8000
)
