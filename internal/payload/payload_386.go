package payload

// i386 machine code, position-independent via the call/pop idiom
// (there is no rip-relative addressing on this architecture). Same
// syscall sequence as the amd64 blob: open, write, close, kill(self,
// SIGSTOP).
var setMACLabel386 = []byte{
	0xe8, 0x1c, 0x00, 0x00, 0x00, // call past the embedded path
	'/', 'p', 'r', 'o', 'c', '/', 't', 'h', 'r', 'e', 'a', 'd', '-',
	's', 'e', 'l', 'f', '/', 'a', 't', 't', 'r', '/', 'e', 'x', 'e', 'c', 0x00,
	0x5b, // pop ebx          ; ebx = &path
	0x31, 0xc9, // xor ecx, ecx    ; O_WRONLY
	0x31, 0xd2, // xor edx, edx
	0xb8, 0x05, 0x00, 0x00, 0x00, // mov eax, 5      ; SYS_open (i386)
	0xcd, 0x80, // int 0x80
	0x89, 0xc6, // mov esi, eax    ; save fd
	0x89, 0xc3, // mov ebx, eax
	0x8d, 0x0d, 0x00, 0x00, 0x00, 0x00, // lea ecx, [label]  ; patched
	0x31, 0xd2, // xor edx, edx    ; patched with label length + 1
	0xb8, 0x04, 0x00, 0x00, 0x00, // mov eax, 4      ; SYS_write (i386)
	0xcd, 0x80, // int 0x80
	0x89, 0xf3, // mov ebx, esi
	0xb8, 0x06, 0x00, 0x00, 0x00, // mov eax, 6      ; SYS_close (i386)
	0xcd, 0x80, // int 0x80
	0xb8, 0x14, 0x00, 0x00, 0x00, // mov eax, 20     ; SYS_getpid (i386)
	0xcd, 0x80, // int 0x80
	0x89, 0xc3, // mov ebx, eax
	0xb9, 0x13, 0x00, 0x00, 0x00, // mov ecx, 19     ; SIGSTOP
	0xb8, 0x25, 0x00, 0x00, 0x00, // mov eax, 37     ; SYS_kill (i386)
	0xcd, 0x80, // int 0x80
	0xcc, // int3
}

var trap386 = []byte{
	0xb8, 0x14, 0x00, 0x00, 0x00, // mov eax, 20     ; SYS_getpid
	0xcd, 0x80,
	0x89, 0xc3, // mov ebx, eax
	0xb9, 0x05, 0x00, 0x00, 0x00, // mov ecx, 5      ; SIGTRAP
	0xb8, 0x25, 0x00, 0x00, 0x00, // mov eax, 37     ; SYS_kill
	0xcd, 0x80,
	0xcc,
}

func init() {
	macLabelCode["386"] = archCode{code: setMACLabel386}
	trapCode["386"] = archCode{code: trap386, signal: 5} // SIGTRAP
}
