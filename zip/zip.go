package zip

import "github.com/archtrace/archtrace/decode"

const (
	sigCentralDir     = "PK\x01\x02"
	sigLocalFile      = "PK\x03\x04"
	sigEOCD           = "PK\x05\x06"
	sigEOCD64         = "PK\x06\x06"
	sigEOCDLocator    = "PK\x06\x07"
	sigDataDescriptor = "PK\x07\x08"
)

// Opts controls decoding behavior that trades strictness for tolerance.
type Opts struct {
	// Force, when true, accepts and records a signature mismatch instead of
	// failing - useful for probing truncated or hand-edited archives.
	Force bool
}

// eocdRecord is the handful of end-of-central-directory fields later
// phases of decoding need, whichever of the 32-bit or ZIP64 record they
// came from.
type eocdRecord struct {
	diskNr    uint32
	nrRecords uint64
	sizeCD    uint64
	offsetCD  uint64
}

// sentinel reports whether any of the 32-bit EOCD's own fields hold a
// ZIP64 placeholder value, meaning a ZIP64 locator is required for this
// archive to be read correctly even though it claims to be found.
func (e eocdRecord) sentinel() bool {
	return e.diskNr == 0xffff || e.nrRecords == 0xffff ||
		e.sizeCD == 0xffffffff || e.offsetCD == 0xffffffff
}

func (e eocdRecord) cdRange(pos decode.Cursor) (start, end int, err *decode.Error) {
	start, err = narrow(pos, e.offsetCD)
	if err != nil {
		return 0, 0, err
	}
	size, err := narrow(pos, e.sizeCD)
	if err != nil {
		return 0, 0, err
	}
	return start, start + size, nil
}

// decodeEOCDCommon reads the fields shared by the 32-bit EOCD and its
// ZIP64 counterpart; zip64 selects the wider field widths.
func decodeEOCDCommon(o *decode.Obj, c *decode.Cursor, zip64 bool) (eocdRecord, *decode.Error) {
	// record counts widen from u16 straight to u64 under ZIP64
	addCount := func(field string) (uint64, *decode.Error) {
		if zip64 {
			return addU64(o, field, c)
		}
		u, err := addU16(o, field, c)
		return uint64(u), err
	}
	diskNr, err := addSmall(o, "disk_nr", c, zip64)
	if err != nil {
		return eocdRecord{}, err
	}
	if _, err := addSmall(o, "start_disk_nr", c, zip64); err != nil {
		return eocdRecord{}, err
	}
	if _, err := addCount("nr_of_central_dir_records_on_disk"); err != nil {
		return eocdRecord{}, err
	}
	nrRecords, err := addCount("nr_of_central_dir_records")
	if err != nil {
		return eocdRecord{}, err
	}
	sizeCD, err := addLarge(o, "size_of_central_dir", c, zip64)
	if err != nil {
		return eocdRecord{}, err
	}
	offsetCD, err := addLarge(o, "offset_of_start_of_central_dir", c, zip64)
	if err != nil {
		return eocdRecord{}, err
	}
	return eocdRecord{diskNr: uint32(diskNr), nrRecords: nrRecords, sizeCD: sizeCD, offsetCD: offsetCD}, nil
}

func decodeEOCD(o *decode.Obj, c *decode.Cursor, opts Opts) (eocdRecord, *decode.Error) {
	if err := addSignature(o, c, sigEOCD, opts.Force); err != nil {
		return eocdRecord{}, err
	}
	eocdr, err := decodeEOCDCommon(o, c, false)
	if err != nil {
		return eocdRecord{}, err
	}
	commentLength, err := addU16(o, "comment_length", c)
	if err != nil {
		return eocdRecord{}, err
	}
	if _, err := addRaw(o, "comment", c, int(commentLength)); err != nil {
		return eocdRecord{}, err
	}
	return eocdr, nil
}

func decodeExtensibleData(o *decode.Obj, c *decode.Cursor) *decode.Error {
	if _, err := addU16(o, "tag", c); err != nil {
		return err
	}
	size, err := addU16(o, "size", c)
	if err != nil {
		return err
	}
	_, err = addRaw(o, "data", c, int(size))
	return err
}

func decodeEOCD64(o *decode.Obj, c *decode.Cursor, opts Opts) (eocdRecord, *decode.Error) {
	if err := addSignature(o, c, sigEOCD64, opts.Force); err != nil {
		return eocdRecord{}, err
	}
	sizeEOCD, err := addU64(o, "size_of_end_of_central_directory", c)
	if err != nil {
		return eocdRecord{}, err
	}
	if _, err := addU16(o, "version_made_by", c); err != nil {
		return eocdRecord{}, err
	}
	if _, err := addU16(o, "version_needed", c); err != nil {
		return eocdRecord{}, err
	}
	eocdr, err := decodeEOCDCommon(o, c, true)
	if err != nil {
		return eocdRecord{}, err
	}

	// bytes read by decodeEOCD64 after size_of_end_of_central_directory
	const fixedFieldSize = 44
	if sizeEOCD < fixedFieldSize {
		return eocdRecord{}, &decode.Error{
			Position: *c,
			Expect:   decode.Expectation{Kind: decode.ExpectUintNarrow, Found: sizeEOCD},
		}
	}
	rest, nerr := narrow(*c, sizeEOCD-fixedFieldSize)
	if nerr != nil {
		return eocdRecord{}, nerr
	}
	sub, err := c.Take(rest)
	if err != nil {
		return eocdRecord{}, err
	}
	err = o.AddField("extensible_data", decode.MetaFrom(sub), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		arr := v.MakeArr()
		for sub.Len() > 0 {
			aerr := arr.AddElement(decode.MetaFrom(sub), func(m *decode.Meta, v *decode.Value) *decode.Error {
				return decode.ConsumeErr(&sub, m, func(c *decode.Cursor) *decode.Error {
					return decodeExtensibleData(v.MakeObj(), c)
				})
			})
			if aerr != nil {
				return aerr
			}
		}
		return nil
	})
	if err != nil {
		return eocdRecord{}, err
	}
	return eocdr, nil
}

func decodeEOCDL(o *decode.Obj, c *decode.Cursor, opts Opts) (uint64, *decode.Error) {
	if err := addSignature(o, c, sigEOCDLocator, opts.Force); err != nil {
		return 0, err
	}
	if _, err := addU32(o, "disk_nr", c); err != nil {
		return 0, err
	}
	offsetCDR, err := addU64(o, "offset_of_end_of_central_dir_record", c)
	if err != nil {
		return 0, err
	}
	if _, err := addU32(o, "total_disk_nr", c); err != nil {
		return 0, err
	}
	return offsetCDR, nil
}

// common holds the fields shared verbatim between a local file header and
// its central directory record.
type common struct {
	flags             uint64
	compressionMethod uint16
	compressedSize    uint32
	filenameLen       uint16
	extraFieldLen     uint16
}

func decodeCommon(o *decode.Obj, c *decode.Cursor) (common, *decode.Error) {
	m, _, flagBits, err := decode.U16LE(c)
	if err != nil {
		return common{}, err.WithPathField("flags")
	}
	flags := uint64(flagBits)
	if _, err := decode.AddPrimitive(o, "flags", m, flagsValue(m, flags, generalFlagBits), struct{}{}, nil); err != nil {
		return common{}, err
	}

	compressionMethod, err := addU16(o, "compression_method", c)
	if err != nil {
		return common{}, err
	}

	err = o.AddField("last_modification", decode.MetaFrom(*c), func(m *decode.Meta, v *decode.Value) *decode.Error {
		return decode.ConsumeErr(c, m, func(c *decode.Cursor) *decode.Error {
			return decodeTimeDate(v.MakeObj(), c)
		})
	})
	if err != nil {
		return common{}, err
	}

	if _, err := addU32(o, "crc_32", c); err != nil {
		return common{}, err
	}
	compressedSize, err := addU32(o, "compressed_size", c)
	if err != nil {
		return common{}, err
	}
	if _, err := addU32(o, "uncompressed_size", c); err != nil {
		return common{}, err
	}
	filenameLen, err := addU16(o, "file_name_length", c)
	if err != nil {
		return common{}, err
	}
	extraFieldLen, err := addU16(o, "extra_field_length", c)
	if err != nil {
		return common{}, err
	}

	return common{
		flags:             flags,
		compressionMethod: compressionMethod,
		compressedSize:    compressedSize,
		filenameLen:       filenameLen,
		extraFieldLen:     extraFieldLen,
	}, nil
}

func decodeNameAndFields(o *decode.Obj, c *decode.Cursor, cm common) (zip64Fields, *decode.Error) {
	if _, err := addRaw(o, "file_name", c, int(cm.filenameLen)); err != nil {
		return zip64Fields{}, err
	}
	efs, err := c.Take(int(cm.extraFieldLen))
	if err != nil {
		return zip64Fields{}, err
	}
	var z zip64Fields
	err = o.AddField("extra_fields", decode.MetaFrom(efs), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		var e *decode.Error
		z, e = decodeExtraFields(v.MakeArr(), efs)
		return e
	})
	return z, err
}

// centralDirRecord is what later phases of decoding need out of a decoded
// CDR: enough to locate and interpret its matching local file header.
type centralDirRecord struct {
	common          common
	diskNrStart     uint32
	localFileOffset uint64
}

func decodeCDR(o *decode.Obj, c *decode.Cursor, opts Opts) (centralDirRecord, *decode.Error) {
	if err := addSignature(o, c, sigCentralDir, opts.Force); err != nil {
		return centralDirRecord{}, err
	}
	versionMadeBy, err := addU16(o, "version_made_by", c)
	if err != nil {
		return centralDirRecord{}, err
	}
	if _, err := addU16(o, "version_needed", c); err != nil {
		return centralDirRecord{}, err
	}
	cm, err := decodeCommon(o, c)
	if err != nil {
		return centralDirRecord{}, err
	}

	fileCommentLen, err := addU16(o, "file_comment_length", c)
	if err != nil {
		return centralDirRecord{}, err
	}
	diskNrStart, err := addU16(o, "disk_number_where_file_starts", c)
	if err != nil {
		return centralDirRecord{}, err
	}
	if _, err := addU16(o, "internal_file_attributes", c); err != nil {
		return centralDirRecord{}, err
	}

	m, _, extAttrs, err := decode.U32LE(c)
	if err != nil {
		return centralDirRecord{}, err.WithPathField("external_file_attributes")
	}
	if _, err := decode.AddPrimitive(o, "external_file_attributes", m, decode.ValueU32(extAttrs), struct{}{}, nil); err != nil {
		return centralDirRecord{}, err
	}
	addDerivedMode(o, m, uint8(versionMadeBy>>8), extAttrs)

	localFileOffset, err := addU32(o, "relative_offset_of_local_file_header", c)
	if err != nil {
		return centralDirRecord{}, err
	}

	z, err := decodeNameAndFields(o, c, cm)
	if err != nil {
		return centralDirRecord{}, err
	}
	if _, err := addRaw(o, "file_comment", c, int(fileCommentLen)); err != nil {
		return centralDirRecord{}, err
	}

	diskNr := uint32(diskNrStart)
	if z.diskNrStart != nil {
		diskNr = *z.diskNrStart
	}
	offset := uint64(localFileOffset)
	if z.localFileOffset != nil {
		offset = *z.localFileOffset
	}

	return centralDirRecord{common: cm, diskNrStart: diskNr, localFileOffset: offset}, nil
}

// decodeDataIndicator reads the optional data-descriptor block that
// trails a local file's compressed bytes when the data_descriptor flag is
// set. Both the signed (with its own signature) and bare forms are
// accepted; the form actually found is returned for the caller to record
// as a presentation note.
func decodeDataIndicator(o *decode.Obj, c *decode.Cursor) (string, *decode.Error) {
	form := "bare"
	if c.StartsWith([]byte(sigDataDescriptor)) {
		if err := addSignature(o, c, sigDataDescriptor, true); err != nil {
			return form, err
		}
		form = "with signature"
	}
	if _, err := addU32(o, "crc32_uncompressed", c); err != nil {
		return form, err
	}
	if _, err := addU32(o, "compressed_size", c); err != nil {
		return form, err
	}
	if _, err := addU32(o, "uncompressed_size", c); err != nil {
		return form, err
	}
	return form, nil
}

func decodeLocalFile(o *decode.Obj, c *decode.Cursor, opts Opts, cdrCommon common) *decode.Error {
	if err := addSignature(o, c, sigLocalFile, opts.Force); err != nil {
		return err
	}
	if _, err := addU16(o, "version_needed", c); err != nil {
		return err
	}
	lfCommon, err := decodeCommon(o, c)
	if err != nil {
		return err
	}
	z, err := decodeNameAndFields(o, c, lfCommon)
	if err != nil {
		return err
	}
	// no file_comment here, unlike in the central directory record

	compressedSize := uint64(lfCommon.compressedSize)
	if z.compressedSize != nil {
		compressedSize = *z.compressedSize
	}
	if compressedSize == 0 {
		compressedSize = uint64(cdrCommon.compressedSize)
	}
	n, nerr := narrow(*c, compressedSize)
	if nerr != nil {
		return nerr
	}

	if n > 0 {
		compressedMeta, _, compressedCursor, err := decode.Raw(c, n)
		if err != nil {
			return err.WithPathField("compressed")
		}
		compressedMeta.Description = compressionMethodName(lfCommon.compressionMethod)
		method := lfCommon.compressionMethod
		compressedBytes := append([]byte(nil), compressedCursor.Bytes()...)
		lazy := decode.ValueLazy(func() decode.Value { return uncompressValue(compressedBytes, method) })
		if _, err := decode.AddPrimitive(o, "compressed", compressedMeta, lazy, struct{}{}, nil); err != nil {
			return err
		}
	}

	if hasBit(lfCommon.flags, dataDescriptorBit) {
		var form string
		err := o.AddField("data_indicator", decode.MetaFrom(*c), func(m *decode.Meta, v *decode.Value) *decode.Error {
			return decode.ConsumeErr(c, m, func(c *decode.Cursor) *decode.Error {
				var e *decode.Error
				form, e = decodeDataIndicator(v.MakeObj(), c)
				return e
			})
		})
		if len(o.Fields) > 0 {
			o.Fields[len(o.Fields)-1].Meta.Description = form
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// findBackwards scans b's sliding 4-byte windows from the end, returning
// the absolute offset of the last one equal to sig, examining at most
// maxBack-3 windows (i.e. roughly the trailing maxBack bytes of b).
func findBackwards(b []byte, sig string, maxBack int) (int, bool) {
	n := len(b)
	if n < 4 {
		return 0, false
	}
	limit := maxBack - 3
	if limit < 0 {
		limit = 0
	}
	count := 0
	for i := n - 4; i >= 0 && count < limit; i, count = i-1, count+1 {
		if string(b[i:i+4]) == sig {
			return i, true
		}
	}
	return 0, false
}

// decodeEOCDs locates the end-of-central-directory record, upgrading to
// its ZIP64 counterpart when a locator is found just before it. If no
// locator is found but the 32-bit record carries a ZIP64 placeholder
// value, this is a malformed archive and decoding fails explicitly rather
// than silently truncating 64-bit sizes to their 32-bit sentinels.
func decodeEOCDs(root *decode.Obj, c *decode.Cursor, opts Opts) (eocdRecord, *decode.Error) {
	eocdsAbs, ok := findBackwards(c.Bytes(), sigEOCD, 65558)
	if !ok {
		return eocdRecord{}, &decode.Error{
			Position: *c,
			Expect:   decode.Expectation{Kind: decode.ExpectAnchor, Name: "end of central directory"},
		}
	}
	eocdSlice, err := c.SplitOff(eocdsAbs)
	if err != nil {
		return eocdRecord{}, err
	}

	var eocdr eocdRecord
	err = root.AddField("end_of_central_directory_record", decode.MetaFrom(eocdSlice), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		var e *decode.Error
		eocdr, e = decodeEOCD(v.MakeObj(), &eocdSlice, opts)
		return e
	})
	if err != nil {
		return eocdRecord{}, err
	}

	eocdlAbs, found := findBackwards(c.Bytes(), sigEOCDLocator, 20)
	if !found {
		if eocdr.sentinel() {
			return eocdRecord{}, &decode.Error{
				Position: *c,
				Expect:   decode.Expectation{Kind: decode.ExpectAnchor, Name: "zip64 end of central directory locator"},
			}
		}
		return eocdr, nil
	}

	eocdlSlice, err := c.SplitOff(eocdlAbs)
	if err != nil {
		return eocdRecord{}, err
	}

	var offsetEOCD64 uint64
	err = root.AddField("end_of_central_directory_locator", decode.MetaFrom(eocdlSlice), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		var e *decode.Error
		offsetEOCD64, e = decodeEOCDL(v.MakeObj(), &eocdlSlice, opts)
		return e
	})
	if err != nil {
		return eocdRecord{}, err
	}

	offset, nerr := narrow(*c, offsetEOCD64)
	if nerr != nil {
		return eocdRecord{}, nerr
	}
	eocd64Slice, serr := c.SliceFrom(offset)
	if serr != nil {
		return eocdRecord{}, serr
	}

	var eocd64r eocdRecord
	err = root.AddField("end_of_central_directory_record_zip64", decode.MetaFrom(eocd64Slice), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		var e *decode.Error
		eocd64r, e = decodeEOCD64(v.MakeObj(), &eocd64Slice, opts)
		return e
	})
	if err != nil {
		return eocdRecord{}, err
	}
	return eocd64r, nil
}

// Decode parses buf as a ZIP archive into root: end-of-central-directory
// discovery (with ZIP64 upgrade), central directory traversal, and local
// file header decoding for every entry whose disk number matches the
// archive's own.
func Decode(root *decode.Obj, buf []byte, opts Opts) *decode.Error {
	c := decode.NewCursor(buf)
	eocd, err := decodeEOCDs(root, &c, opts)
	if err != nil {
		return err
	}

	cdStart, cdEnd, err := eocd.cdRange(c)
	if err != nil {
		return err
	}
	full := decode.NewCursor(buf)
	cdSlice, serr := full.Slice(cdStart, cdEnd)
	if serr != nil {
		return serr.WithPathField("central_directories")
	}

	var cdrs []centralDirRecord
	err = root.AddField("central_directories", decode.MetaFrom(cdSlice), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		arr := v.MakeArr()
		for cdSlice.Len() > 0 {
			var cdr centralDirRecord
			aerr := arr.AddElement(decode.MetaFrom(cdSlice), func(m *decode.Meta, v *decode.Value) *decode.Error {
				return decode.ConsumeErr(&cdSlice, m, func(c *decode.Cursor) *decode.Error {
					var e *decode.Error
					cdr, e = decodeCDR(v.MakeObj(), c, opts)
					return e
				})
			})
			if aerr != nil {
				return aerr
			}
			cdrs = append(cdrs, cdr)
		}
		return nil
	})
	if err != nil {
		return err
	}

	lfSlice, serr := full.SliceTo(cdStart)
	if serr != nil {
		return serr.WithPathField("local_files")
	}

	return root.AddField("local_files", decode.MetaFrom(lfSlice), func(_ *decode.Meta, v *decode.Value) *decode.Error {
		arr := v.MakeArr()
		for _, cdr := range cdrs {
			if cdr.diskNrStart != eocd.diskNr {
				continue
			}
			offset, nerr := narrow(lfSlice, cdr.localFileOffset)
			if nerr != nil {
				return nerr
			}
			lfrSlice, serr := lfSlice.SliceFrom(offset)
			if serr != nil {
				return serr
			}
			aerr := arr.AddElement(decode.MetaFrom(lfrSlice), func(m *decode.Meta, v *decode.Value) *decode.Error {
				return decode.ConsumeErr(&lfrSlice, m, func(c *decode.Cursor) *decode.Error {
					return decodeLocalFile(v.MakeObj(), c, opts, cdr.common)
				})
			})
			if aerr != nil {
				return aerr
			}
		}
		return nil
	})
}

// DecodeBytes is the entry point for callers that just want a standalone
// annotated tree rather than an Obj to populate in place.
func DecodeBytes(buf []byte, opts Opts) (decode.Value, *decode.Error) {
	var v decode.Value
	root := v.MakeObj()
	err := Decode(root, buf, opts)
	return v, err
}
