package rirep

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/clarete/rembed/rsym"
)

// The binary image format of spec.md §6: a fixed header (magic,
// version, CRC, total size), then a sequence of 8-byte-identified,
// size-prefixed sections, ending with an `END ` sentinel. Only the
// `IREP` section is required for a loadable image; `LINE`/`DBG` are
// optional debug sections.
var (
	magic         = [4]byte{'R', 'I', 'M', 'G'}
	imageVersion  = uint16(1)
	sectionIREP   = [8]byte{'I', 'R', 'E', 'P', 0, 0, 0, 0}
	sectionLine   = [8]byte{'L', 'I', 'N', 'E', 0, 0, 0, 0}
	sectionEnd    = [8]byte{'E', 'N', 'D', ' ', 0, 0, 0, 0}
)

type header struct {
	Magic   [4]byte
	Version uint16
	CRC     uint16
	Size    uint32
}

// Dump serializes root (and, transitively, every child IREP in
// depth-first order) into the binary image format. The CRC is CCITT-16
// over every byte following the CRC field through end-of-file, per
// spec.md §6.
func Dump(root *IREP, tbl *rsym.Table) ([]byte, error) {
	var body bytes.Buffer
	if err := writeIREPSection(&body, root, tbl); err != nil {
		return nil, err
	}
	body.Write(sectionEnd[:])
	binary.Write(&body, binary.LittleEndian, uint32(0))

	h := header{Magic: magic, Version: imageVersion}
	h.Size = uint32(len(body.Bytes())) + 12 // header size
	var sizeField [4]byte
	binary.LittleEndian.PutUint32(sizeField[:], h.Size)
	h.CRC = crc16CCITT(append(sizeField[:], body.Bytes()...))

	var out bytes.Buffer
	out.Write(h.Magic[:])
	binary.Write(&out, binary.LittleEndian, h.Version)
	binary.Write(&out, binary.LittleEndian, h.CRC)
	binary.Write(&out, binary.LittleEndian, h.Size)
	out.Write(body.Bytes())
	return out.Bytes(), nil
}

func writeIREPSection(w *bytes.Buffer, irep *IREP, tbl *rsym.Table) error {
	var rec bytes.Buffer
	binary.Write(&rec, binary.LittleEndian, uint16(irep.NLocals))
	binary.Write(&rec, binary.LittleEndian, uint16(irep.NRegs))
	binary.Write(&rec, binary.LittleEndian, uint16(len(irep.Kids)))
	binary.Write(&rec, binary.LittleEndian, irep.Params.Pack())

	binary.Write(&rec, binary.LittleEndian, uint32(len(irep.Code)))
	for _, inst := range irep.Code {
		binary.Write(&rec, binary.LittleEndian, inst.Op)
		binary.Write(&rec, binary.LittleEndian, inst.A)
		binary.Write(&rec, binary.LittleEndian, inst.B)
		binary.Write(&rec, binary.LittleEndian, inst.C)
	}

	binary.Write(&rec, binary.LittleEndian, uint32(len(irep.Pool)))
	for _, c := range irep.Pool {
		rec.WriteByte(byte(c.Kind))
		switch c.Kind {
		case ConstInt:
			binary.Write(&rec, binary.LittleEndian, c.I)
		case ConstFloat:
			binary.Write(&rec, binary.LittleEndian, c.F)
		case ConstString:
			binary.Write(&rec, binary.LittleEndian, uint16(len(c.S)))
			rec.WriteString(c.S)
		}
	}

	binary.Write(&rec, binary.LittleEndian, uint32(len(irep.Syms)))
	for _, s := range irep.Syms {
		name := tbl.Name(s)
		binary.Write(&rec, binary.LittleEndian, uint16(len(name)))
		rec.WriteString(name)
		rec.WriteByte(0)
	}

	w.Write(sectionIREP[:])
	binary.Write(w, binary.LittleEndian, uint32(rec.Len()))
	w.Write(rec.Bytes())

	for _, k := range irep.Kids {
		if err := writeIREPSection(w, k, tbl); err != nil {
			return err
		}
	}
	return nil
}

// Load decodes a binary image produced by Dump, verifying the header
// CRC before trusting any record; a mismatch is spec.md §7's fatal
// "image CRC mismatch".
func Load(data []byte, tbl *rsym.Table) (*IREP, error) {
	if len(data) < 12 {
		return nil, &CorruptImageError{Reason: "short header"}
	}
	var h header
	copy(h.Magic[:], data[0:4])
	h.Version = binary.LittleEndian.Uint16(data[4:6])
	h.CRC = binary.LittleEndian.Uint16(data[6:8])
	h.Size = binary.LittleEndian.Uint32(data[8:12])
	if h.Magic != magic {
		return nil, &CorruptImageError{Reason: "bad magic"}
	}
	body := data[12:]
	if crc16CCITT(data[8:]) != h.CRC {
		return nil, &CorruptImageError{Reason: "CRC mismatch"}
	}
	r := bytes.NewReader(body)
	irep, err := readIREPSection(r, tbl)
	if err != nil {
		return nil, errors.Wrap(err, "rirep: decode IREP section")
	}
	return irep, nil
}

func readIREPSection(r *bytes.Reader, tbl *rsym.Table) (*IREP, error) {
	var id [8]byte
	if _, err := io.ReadFull(r, id[:]); err != nil {
		return nil, err
	}
	if id != sectionIREP {
		return nil, &CorruptImageError{Reason: "expected IREP section"}
	}
	var size uint32
	binary.Read(r, binary.LittleEndian, &size)

	irep := New()
	var nlocals, nregs, nkids uint16
	binary.Read(r, binary.LittleEndian, &nlocals)
	binary.Read(r, binary.LittleEndian, &nregs)
	binary.Read(r, binary.LittleEndian, &nkids)
	irep.NLocals, irep.NRegs = int(nlocals), int(nregs)

	var packedParams uint32
	binary.Read(r, binary.LittleEndian, &packedParams)
	irep.Params = UnpackParamSpec(packedParams)

	var ilen uint32
	binary.Read(r, binary.LittleEndian, &ilen)
	irep.Code = make([]Inst, ilen)
	for i := range irep.Code {
		var inst Inst
		binary.Read(r, binary.LittleEndian, &inst.Op)
		binary.Read(r, binary.LittleEndian, &inst.A)
		binary.Read(r, binary.LittleEndian, &inst.B)
		binary.Read(r, binary.LittleEndian, &inst.C)
		irep.Code[i] = inst
	}

	var plen uint32
	binary.Read(r, binary.LittleEndian, &plen)
	irep.Pool = make([]Const, plen)
	for i := range irep.Pool {
		kindByte, _ := r.ReadByte()
		c := Const{Kind: ConstKind(kindByte)}
		switch c.Kind {
		case ConstInt:
			binary.Read(r, binary.LittleEndian, &c.I)
		case ConstFloat:
			binary.Read(r, binary.LittleEndian, &c.F)
		case ConstString:
			var slen uint16
			binary.Read(r, binary.LittleEndian, &slen)
			buf := make([]byte, slen)
			io.ReadFull(r, buf)
			c.S = string(buf)
		}
		irep.Pool[i] = c
	}

	var slen uint32
	binary.Read(r, binary.LittleEndian, &slen)
	irep.Syms = make([]rsym.ID, slen)
	for i := range irep.Syms {
		var nlen uint16
		binary.Read(r, binary.LittleEndian, &nlen)
		buf := make([]byte, nlen+1) // +1 for the trailing NUL the writer appends
		io.ReadFull(r, buf)
		irep.Syms[i] = tbl.Intern(string(buf[:nlen]))
	}

	irep.Kids = make([]*IREP, nkids)
	for i := range irep.Kids {
		k, err := readIREPSection(r, tbl)
		if err != nil {
			return nil, err
		}
		irep.Kids[i] = k
	}
	return irep, nil
}

// CorruptImageError is spec.md §7's fatal "corrupt IREP load".
type CorruptImageError struct{ Reason string }

func (e *CorruptImageError) Error() string { return "corrupt image: " + e.Reason }
