package payload

// amd64 machine code, position-independent, no external symbols.
//
// setMACLabelAmd64 implements, in raw syscalls:
//
//	fd = open("/proc/thread-self/attr/exec", O_WRONLY, 0)
//	write(fd, label, strlen(label)+1)   // label bytes follow the code
//	close(fd)
//	kill(getpid(), SIGSTOP)
//	int3                                 // never reached; safety net
//
// The path string is embedded in the code via a call/pop trick so the
// blob needs no relocation once copied into the tracee.
var setMACLabelAmd64 = []byte{
	0xe8, 0x1c, 0x00, 0x00, 0x00, // call past the embedded path, pushing its address
	'/', 'p', 'r', 'o', 'c', '/', 't', 'h', 'r', 'e', 'a', 'd', '-',
	's', 'e', 'l', 'f', '/', 'a', 't', 't', 'r', '/', 'e', 'x', 'e', 'c', 0x00,
	0x5f, // pop rdi          ; rdi = &path
	0x48, 0x31, 0xf6, // xor rsi, rsi     ; O_WRONLY
	0x31, 0xd2, // xor edx, edx
	0xb8, 0x02, 0x00, 0x00, 0x00, // mov eax, 2       ; SYS_open
	0x0f, 0x05, // syscall          ; rax = fd
	0x49, 0x89, 0xc4, // mov r12, rax     ; save fd
	0x48, 0x89, 0xc7, // mov rdi, rax
	0x48, 0x8d, 0x35, 0x00, 0x00, 0x00, 0x00, // lea rsi, [rip]   ; patched to point past this blob
	0x48, 0x31, 0xd2, // xor rdx, rdx     ; patched with label length + 1
	0xb8, 0x01, 0x00, 0x00, 0x00, // mov eax, 1       ; SYS_write
	0x0f, 0x05, // syscall
	0x4c, 0x89, 0xe7, // mov rdi, r12
	0xb8, 0x03, 0x00, 0x00, 0x00, // mov eax, 3       ; SYS_close
	0x0f, 0x05, // syscall
	0xb8, 0x27, 0x00, 0x00, 0x00, // mov eax, 39      ; SYS_getpid
	0x0f, 0x05, // syscall          ; rax = pid
	0x48, 0x89, 0xc7, // mov rdi, rax     ; rdi = pid
	0xbe, 0x13, 0x00, 0x00, 0x00, // mov esi, 19      ; SIGSTOP
	0xb8, 0x3e, 0x00, 0x00, 0x00, // mov eax, 62      ; SYS_kill
	0x0f, 0x05, // syscall
	0xcc, // int3
}

var trapAmd64 = []byte{
	0xb8, 0x27, 0x00, 0x00, 0x00, // mov eax, 39      ; SYS_getpid
	0x0f, 0x05, // syscall
	0x48, 0x89, 0xc7, // mov rdi, rax
	0xbe, 0x05, 0x00, 0x00, 0x00, // mov esi, 5       ; SIGTRAP
	0xb8, 0x3e, 0x00, 0x00, 0x00, // mov eax, 62      ; SYS_kill
	0x0f, 0x05, // syscall
	0xcc, // int3
}

func init() {
	macLabelCode["amd64"] = archCode{code: setMACLabelAmd64}
	trapCode["amd64"] = archCode{code: trapAmd64, signal: 5} // SIGTRAP
}
