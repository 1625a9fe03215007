// Package mmap maps local survey tiles read-only into memory so that pixel
// windows can be copied out without read syscalls.
//
//	m, err := mmap.Open("tiles/r_0042.fits")
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessRandom)
//	n, err := m.ReadAt(buf, off)
//
// On Unix the file is mapped with mmap(2) and access hints go to madvise(2).
// Other platforms read the file into memory and ignore hints.
//
// Mapping is safe for concurrent reads. Close is idempotent; callers must not
// use the slice from Bytes after Close returns.
package mmap
