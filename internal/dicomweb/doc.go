// Package dicomweb issues the two DICOMweb requests a study retrieval
// benchmark needs against a Cloud Healthcare style DICOM store:
//
//   - QIDO-RS "search for instances" of one study, returning DICOM JSON
//   - WADO-RS "retrieve frame" for one frame of one instance
//
// Every request is profiled: the start time is taken right before the
// request is sent, the response time when the first response byte arrives
// (net/http/httptrace GotFirstResponseByte) and the end time once the body
// has been drained. Byte counts include the full response body. A
// cache verdict is read from the X-Cache or X-Cache-Status response header.
//
// [Client] implements benchmark.Requester.
package dicomweb
