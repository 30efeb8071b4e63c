package payload

// 32-bit ARM machine code, thumb mode only (see the tracer's wide-ARM
// rejection). The instruction encodings below are 16-bit thumb
// opcodes; the tracer refuses any image the entry-point inspector
// reports as wide mode, so this payload is only ever written into a
// thumb-mode entry.
var setMACLabelArm = []byte{
	0x02, 0xa0, // adr r0, path
	0x00, 0x21, // movs r1, #0      ; O_WRONLY
	0x00, 0x22, // movs r2, #0
	0x05, 0x27, // movs r7, #5      ; SYS_open (EABI)
	0x00, 0xdf, // svc 0
	0x03, 0x1c, // mov r3, r0       ; save fd
	0x01, 0xa1, // adr r1, labelAppendedAfterCode ; patched
	0x00, 0x22, // movs r2, #0      ; patched with label length + 1
	0x04, 0x27, // movs r7, #4      ; SYS_write (EABI)
	0x00, 0xdf, // svc 0
	0x18, 0x1c, // mov r0, r3
	0x06, 0x27, // movs r7, #6      ; SYS_close (EABI)
	0x00, 0xdf, // svc 0
	0x14, 0x27, // movs r7, #20     ; SYS_getpid (EABI)
	0x00, 0xdf, // svc 0
	0x01, 0x1c, // mov r1, r0
	0x13, 0x22, // movs r2, #19     ; SIGSTOP
	0x83, 0x27, // movs r7, #131    ; SYS_tgkill (EABI)
	0x00, 0xdf, // svc 0
	0x00, 0xbe, // bkpt 0
	'/', 'p', 'r', 'o', 'c', '/', 't', 'h', 'r', 'e', 'a', 'd', '-',
	's', 'e', 'l', 'f', '/', 'a', 't', 't', 'r', '/', 'e', 'x', 'e', 'c', 0x00,
}

var trapArm = []byte{
	0x14, 0x27, // movs r7, #20     ; SYS_getpid
	0x00, 0xdf, // svc 0
	0x01, 0x1c, // mov r1, r0
	0x05, 0x22, // movs r2, #5      ; SIGTRAP
	0x83, 0x27, // movs r7, #131    ; SYS_tgkill
	0x00, 0xdf, // svc 0
	0x00, 0xbe, // bkpt 0
}

func init() {
	macLabelCode["arm"] = archCode{code: setMACLabelArm}
	trapCode["arm"] = archCode{code: trapArm, signal: 5} // SIGTRAP
}
