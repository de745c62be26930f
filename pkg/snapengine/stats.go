package snapengine

// counters for one Build() run
type Stats struct {
	Directories int64
	FilesCopied int64
	FilesLinked int64 // content-identity links into the previous snapshot
	Symlinks    int64 // symlinks recreated from source
	Skipped     int64 // special files (fifos, sockets, devices)
	BytesCopied int64
	BytesLinked int64 // bytes not copied thanks to content-identity links
	BytesHashed int64
}

func (s Stats) Entries() int64 {
	return s.Directories + s.FilesCopied + s.FilesLinked + s.Symlinks + s.Skipped
}
