// info_linux.go - Info construction from a linux stat(2) buffer
//
// (c) 2024- Sudhi Herle <sudhi@herle.net>
//
// Licensing Terms: GPLv2
//
// If you need a commercial license for this work, please contact
// the author.
//
// This software does not come with any express or implied
// warranty; it is provided "as is". No claim  is made to its
// suitability for any purpose.

//go:build linux

package fsx

import (
	"io/fs"
	"syscall"
)

// makeInfo fills 'fi' from a raw linux stat_t buffer and previously
// fetched xattr map.
func makeInfo(fi *Info, nm string, st *syscall.Stat_t, x Xattr) {
	fi.path = nm
	fi.Ino = st.Ino
	fi.Siz = st.Size
	fi.Dev = uint64(st.Dev)
	fi.Rdev = uint64(st.Rdev)
	fi.Mod = unixModeToFsMode(st.Mode) | (fs.FileMode(st.Mode) & fs.ModePerm)
	fi.Uid = st.Uid
	fi.Gid = st.Gid
	fi.Nlink = uint32(st.Nlink)
	fi.Atim = ts2time(st.Atim)
	fi.Mtim = ts2time(st.Mtim)
	fi.Ctim = ts2time(st.Ctim)
	fi.Xattr = x
}

// unixModeToFsMode maps the S_IFMT type bits of a raw unix mode to the
// corresponding fs.FileMode type bits. Permission bits are handled
// separately by the caller.
func unixModeToFsMode(m uint32) fs.FileMode {
	switch m & syscall.S_IFMT {
	case syscall.S_IFDIR:
		return fs.ModeDir
	case syscall.S_IFLNK:
		return fs.ModeSymlink
	case syscall.S_IFIFO:
		return fs.ModeNamedPipe
	case syscall.S_IFSOCK:
		return fs.ModeSocket
	case syscall.S_IFBLK:
		return fs.ModeDevice
	case syscall.S_IFCHR:
		return fs.ModeDevice | fs.ModeCharDevice
	default:
		return 0
	}
}
