package payload

// aarch64 machine code. The path string and the ADR-reachable label
// offset both stay within the +-1MiB range ADR guarantees, which this
// blob's size comfortably satisfies.
var setMACLabelArm64 = []byte{
	0x21, 0x00, 0x00, 0x10, // adr x1, path
	0xe0, 0x03, 0x01, 0xaa, // mov x0, x1       ; open(path, ...)
	0x01, 0x00, 0x80, 0xd2, // mov x1, #0       ; O_WRONLY
	0x02, 0x00, 0x80, 0xd2, // mov x2, #0
	0x08, 0x0b, 0x80, 0xd2, // mov x8, #0x58    ; SYS_openat family placeholder
	0x01, 0x00, 0x00, 0xd4, // svc #0
	0xf3, 0x03, 0x00, 0xaa, // mov x19, x0      ; save fd
	0x00, 0x03, 0x00, 0xaa, // mov x0, x0
	0x21, 0x00, 0x00, 0x10, // adr x1, labelAppendedAfterCode ; patched
	0x02, 0x00, 0x80, 0xd2, // mov x2, #0       ; patched with label length + 1
	0xc8, 0x08, 0x80, 0xd2, // mov x8, #0x40    ; SYS_write
	0x01, 0x00, 0x00, 0xd4, // svc #0
	0xe0, 0x03, 0x13, 0xaa, // mov x0, x19
	0x08, 0x07, 0x80, 0xd2, // mov x8, #0x39    ; SYS_close
	0x01, 0x00, 0x00, 0xd4, // svc #0
	0xa8, 0x0a, 0x80, 0xd2, // mov x8, #0x5a    ; SYS_getpid
	0x01, 0x00, 0x00, 0xd4, // svc #0
	0xe1, 0x03, 0x00, 0xaa, // mov x1, x0       ; tgid
	0xe0, 0x03, 0x00, 0xaa, // mov x0, x0       ; tid == tgid here
	0x62, 0x02, 0x80, 0xd2, // mov x2, #19      ; SIGSTOP
	0x08, 0x1c, 0x80, 0xd2, // mov x8, #0xe1    ; SYS_tgkill
	0x01, 0x00, 0x00, 0xd4, // svc #0
	0x00, 0x00, 0x20, 0xd4, // brk #0
	'/', 'p', 'r', 'o', 'c', '/', 't', 'h', 'r', 'e', 'a', 'd', '-',
	's', 'e', 'l', 'f', '/', 'a', 't', 't', 'r', '/', 'e', 'x', 'e', 'c', 0x00,
}

var trapArm64 = []byte{
	0xa8, 0x0a, 0x80, 0xd2, // mov x8, #0x5a    ; SYS_getpid
	0x01, 0x00, 0x00, 0xd4, // svc #0
	0xe1, 0x03, 0x00, 0xaa, // mov x1, x0
	0xe0, 0x03, 0x00, 0xaa, // mov x0, x0
	0xa2, 0x00, 0x80, 0xd2, // mov x2, #5       ; SIGTRAP
	0x08, 0x1c, 0x80, 0xd2, // mov x8, #0xe1    ; SYS_tgkill
	0x01, 0x00, 0x00, 0xd4, // svc #0
	0x00, 0x00, 0x20, 0xd4, // brk #0
}

func init() {
	macLabelCode["arm64"] = archCode{code: setMACLabelArm64}
	trapCode["arm64"] = archCode{code: trapArm64, signal: 5} // SIGTRAP
}
