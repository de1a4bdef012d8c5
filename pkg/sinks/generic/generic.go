// Suite of components shared by every destination. By extracting non-destination specific
// behaviour, we minimise the effort involved in implementing a new destination while
// ensuring each destination has consistent semantics.
package generic
