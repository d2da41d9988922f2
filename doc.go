/*
Package aws4 implements the AWS Signature Version 4 (SigV4) request signing algorithm.

A request is signed in three stages. First the request is rendered into a canonical
text form: `<METHOD>\n<URI>\n<QUERY>\n<HEADERS>\n<SIGNED_HEADERS>\n<PAYLOAD_HASH>`,
where header names are lower-cased and sorted, query parameters are percent-encoded
and sorted, and the payload hash slot is either the hex SHA-256 of the body or one
of the well-known sentinel values such as UNSIGNED-PAYLOAD. Second, a string to sign
is built from the algorithm name, the request timestamp, the credential scope
`<YYYYMMDD>/<region>/<service>/aws4_request` and the SHA-256 of the canonical
request. Third, a signing key is derived from the secret access key through four
chained HMAC-SHA256 stages and the string to sign is HMAC'd with it.

The final signature is carried either in the Authorization header:

	Authorization: AWS4-HMAC-SHA256 Credential=<ACCESS_ID>/<SCOPE>, SignedHeaders=<HDRS>, Signature=<SIG>

or, for presigned URLs, in the X-Amz-Algorithm, X-Amz-Credential, X-Amz-Date,
X-Amz-Expires, X-Amz-SignedHeaders and X-Amz-Signature query parameters.

Streaming bodies are signed with the aws-chunked transfer encoding, where each chunk
carries its own signature chained from the previous one, optionally followed by a
signed trailer block. See ChunkedReader.
*/
package aws4
