// Copyright (c) 2023–2026 The labrig developers. All rights reserved.
// Project site: https://github.com/gotmc/labrig
// Use of this source code is governed by a MIT-style license that
// can be found in the LICENSE.txt file for the project.

// Package find locates USB serial instruments by walking /sys/class/tty and
// reading the USB device info behind each symlink. Linux only.
package find

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
)

// FilterFn reports whether a tty belongs to the instrument being sought.
type FilterFn func(*Usbtty) bool

// RigolFilter matches Rigol instruments (USB vendor ID 1ab1).
func RigolFilter(ut *Usbtty) bool { return ut.IDv == "1ab1" }

// FTDIFilter matches FTDI serial bridges (USB vendor ID 0403). The QDac
// connects through one, so this finds it when no other FTDI device is
// attached.
func FTDIFilter(ut *Usbtty) bool { return ut.IDv == "0403" }

// SerialFilter matches the device with the given USB serial string.
func SerialFilter(s string) FilterFn {
	return func(ut *Usbtty) bool { return ut.Serial == s }
}

// VendorFilter matches the given USB vendor ID, as the lowercase hex string
// sysfs reports.
func VendorFilter(idv string) FilterFn {
	return func(ut *Usbtty) bool { return ut.IDv == idv }
}

// Find searches the attached USB ttys for one matching filter and returns
// its device name, e.g. "ttyUSB0". A nil filter accepts every tty. Zero or
// multiple matches are an error, so a filter that cannot single out the
// instrument fails loudly instead of picking one at random.
func Find(filter FilterFn) (string, error) {
	ttys, err := AllUsbTtys()
	if err != nil {
		return "", err
	}
	return ttys.Find(filter)
}

// Find returns the device name of the single tty matching filter.
func (uts Usbttys) Find(filter FilterFn) (string, error) {
	matches := uts
	if filter != nil {
		matches = nil
		for i := range uts {
			if filter(&uts[i]) {
				matches = append(matches, uts[i])
			}
		}
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no matching ttys found")
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("multiple matching ttys:\n%s", matches)
	}
	return matches[0].Dev, nil
}

// Usbtty describes one USB serial device found under /sys/class/tty.
type Usbtty struct {
	Dev, Path string
	IDp, IDv  string
	Mfg, Prod string
	Serial    string
}

func (u Usbtty) String() string {
	return fmt.Sprintf("dev %s path %s pid/vid %s/%s mfg/prod %s/%s serial %s",
		u.Dev, u.Path, u.IDp, u.IDv, u.Mfg, u.Prod, u.Serial)
}

type Usbttys []Usbtty

func (uts Usbttys) String() string {
	s := make([]string, 0, len(uts))
	for _, ut := range uts {
		s = append(s, ut.String())
	}
	return strings.Join(s, "\n")
}

// AllUsbTtys lists the ttys backed by USB devices. Each entry under
// /sys/class/tty is a symlink into /sys/devices; the ones whose resolved
// path runs through a usb segment get their USB descriptors read from two
// directory levels up.
//
// TODO walk an fs.FS so tests can fake the sysfs layout; blocked on an
// fs.FS equivalent of filepath.EvalSymlinks.
func AllUsbTtys() (Usbttys, error) {
	const sct = "/sys/class/tty/"
	entries, err := os.ReadDir(sct)
	if err != nil {
		return nil, err
	}
	var devs Usbttys
	for _, e := range entries {
		if e.Type()&fs.ModeSymlink == 0 {
			continue
		}
		path := filepath.Join(sct, e.Name())
		abs, err := filepath.EvalSymlinks(path)
		if err != nil {
			log.Printf("error evaluating symlink %s; skipping: %s", path, err)
			continue
		}
		if !strings.Contains(abs, "usb") {
			continue
		}
		// The device link lands on the interface directory, e.g.
		// /sys/devices/.../usb1/1-10/1-10:1.0; the descriptors live in
		// its parent.
		dev, err := filepath.EvalSymlinks(filepath.Join(abs, "device"))
		if err != nil {
			log.Printf("usb tty without a device subdir?! %s %s", abs, err)
		}
		idP, idV, mfg, prod, serial, err := readUsbInfo(filepath.Dir(dev))
		if err != nil {
			log.Printf("%s: %s", abs, err)
		}
		devs = append(devs, Usbtty{
			Dev:    e.Name(),
			Path:   abs,
			IDp:    idP,
			IDv:    idV,
			Mfg:    mfg,
			Prod:   prod,
			Serial: serial,
		})
	}
	return devs, nil
}

// readUsbInfo reads the USB descriptor attributes from a sysfs device
// directory. It returns the last error seen, ignoring os.ErrNotExist, and a
// failed attribute never stops the others from being read.
func readUsbInfo(dev string) (idp, idv, mfg, prod, serial string, err error) {
	attrs := [...]string{"idProduct", "idVendor", "manufacturer", "product", "serial"}
	var vals [len(attrs)]string
	for i, name := range attrs {
		b, rerr := os.ReadFile(filepath.Join(dev, name))
		if rerr != nil && !errors.Is(rerr, os.ErrNotExist) {
			err = rerr
		}
		vals[i] = strings.TrimSpace(string(b))
	}
	return vals[0], vals[1], vals[2], vals[3], vals[4], err
}
