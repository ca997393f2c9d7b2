package target

import "fmt"

// x86-64 DWARF register names, System V ABI figure 3.36. Only the
// general-purpose set plus the return address column; vector and
// segment registers are never the subject of a location expression we
// evaluate.
var amd64RegNames = [...]string{
	0:  "rax",
	1:  "rdx",
	2:  "rcx",
	3:  "rbx",
	4:  "rsi",
	5:  "rdi",
	6:  "rbp",
	7:  "rsp",
	8:  "r8",
	9:  "r9",
	10: "r10",
	11: "r11",
	12: "r12",
	13: "r13",
	14: "r14",
	15: "r15",
	16: "rip",
}

// RegisterName returns a display name for a DWARF register number,
// falling back to the bare number for registers outside the mapped set.
func RegisterName(id uint64) string {
	if id < uint64(len(amd64RegNames)) {
		return amd64RegNames[id]
	}
	return fmt.Sprintf("r%d", id)
}
