/*
Package attrindex implements persistent secondary indexes over a single
column of a flat table. An index is built off-line with bounded memory,
using an external merge sort, and answers exact-match lookups by binary
search without loading the table.

Data Structure Documentation

Index File

An index file consists of a fixed header followed by fixed-width records,
sorted ascending by value. Equal values are stored contiguously.

    Index layout:
    +--------+----------+-----+----------+
    | header | record 0 | ... | record n |
    +--------+----------+-----+----------+

    Header (9 bytes):
    +-----------------+-------------------------------+-------------------------------+
    | type tag (byte) | record width (4 bytes, int32) | record count (4 bytes, int32) |
    +-----------------+-------------------------------+-------------------------------+

The file size is always 9 + record count * record width. All integers are
big-endian.

Record

    +-----------------------------+-----------------------+
    | value (record width - 8)    | row id (8 bytes, u64) |
    +-----------------------------+-----------------------+

Values are encoded by type tag:

    N  numeric    4-byte or 8-byte two's complement integer
    F  float      8-byte IEEE-754 double
    L  logical    1 byte, 1 = true, 0 = false
    D  date       8-byte milliseconds since the Unix epoch
    C  character  Latin-1 text, right-padded with spaces

Chunk File

Temporary chunk files hold a sorted run of records in the same encoding but
without a header. They may be wrapped in a snappy, lz4 or zstd stream and
never outlive the build that created them.

Catalog

A catalog is a text file with one column name per line. The column on line
n owns the index file "<base>.<n>.idx", stored next to the catalog.
*/
package attrindex
