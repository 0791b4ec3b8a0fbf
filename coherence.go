package memcache

// refresh makes e coherent with emulated memory for the current epoch.
//
// An entry already validated in this epoch is returned as is. Otherwise
// its range is hashed and uploaded only if the digest changed since the
// last upload. force skips both shortcuts.
func (d *Driver) refresh(e *Entry, force bool) error {
	current := d.epoch.load()
	if !force && e.lastValidated >= current {
		d.counters.epochSkips.Add(1)
		return nil
	}

	span, err := d.mem.Span(e.address, e.size)
	if err != nil {
		return err
	}
	digest := d.opts.hasher(span)
	d.counters.hashes.Add(1)

	if !force && e.lastValidated > 0 && e.hasDigest && digest == e.digest {
		e.lastValidated = current
		d.counters.digestSkips.Add(1)
		return nil
	}

	if err := d.upload(e, span); err != nil {
		return err
	}
	e.digest = digest
	e.hasDigest = true
	e.lastValidated = current
	return nil
}
