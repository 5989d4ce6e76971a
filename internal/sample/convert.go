package sample

// Conversion applied on cache insertion (spec §4.1). Two steps, in order:
// upsampling to the system's target rate, then bit widening to the
// system's target bit depth. No low-pass filter is applied before
// upsampling — this is a deliberate compatibility choice, not an
// oversight: the output is exactly what plain linear interpolation gives.

// Upsample replicates/interpolates an 8- or 16-bit mono PCM buffer by an
// integer factor k (1, 2, or 4). k=1 is a pure copy. For k=2 and k=4,
// neighbouring-sample linear interpolation fills the intermediate output
// samples; the final k output samples replicate the last input sample
// (there is no "next" sample to interpolate against at the end of the
// buffer).
func Upsample(data []byte, bytesPerSample int, k int) []byte {
	if k <= 1 {
		out := make([]byte, len(data))
		copy(out, data)
		return out
	}

	n := len(data) / bytesPerSample
	if n == 0 {
		return nil
	}

	out := make([]byte, n*k*bytesPerSample)
	get := sampleGetter(bytesPerSample)
	put := samplePutter(bytesPerSample)

	for i := 0; i < n; i++ {
		cur := get(data, i)
		var next int
		if i+1 < n {
			next = get(data, i+1)
		} else {
			next = cur
		}

		for j := 0; j < k; j++ {
			var v int
			if i+1 < n {
				// linear interpolation between cur and next at fraction j/k
				v = cur + (next-cur)*j/k
			} else {
				// tail: replicate the last input sample for all k outputs
				v = cur
			}
			put(out, i*k+j, v)
		}
	}

	return out
}

// Widen8to16 converts unsigned 8-bit PCM samples to signed 16-bit PCM
// samples: s16 = (u8 - 0x80) << 8. Never call this the other way; the
// cache never narrows 16-bit audio back down to 8-bit.
func Widen8to16(data []byte) []byte {
	out := make([]byte, len(data)*2)
	for i, u := range data {
		s := (int16(u) - 0x80) << 8
		out[i*2] = byte(uint16(s))
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out
}

func sampleGetter(bytesPerSample int) func([]byte, int) int {
	if bytesPerSample == 1 {
		return func(d []byte, i int) int { return int(d[i]) }
	}
	return func(d []byte, i int) int {
		lo := int(d[i*2])
		hi := int(int8(d[i*2+1]))
		return hi<<8 | lo
	}
}

func samplePutter(bytesPerSample int) func([]byte, int, int) {
	if bytesPerSample == 1 {
		return func(d []byte, i, v int) { d[i] = byte(v) }
	}
	return func(d []byte, i, v int) {
		d[i*2] = byte(uint16(v))
		d[i*2+1] = byte(uint16(v) >> 8)
	}
}
