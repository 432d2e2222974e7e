/*
Package schema loads message types from declarative YAML documents.

A document names a package and lists its messages in order. Each message
lists its fields in order, since field order is part of a message type.

	package: shop

	messages:
	  - name: Item
	    fields:
	      - { name: sku,   type: string, required: true, schema: { pattern: "^[A-Z]{3}-[0-9]{4}$" } }
	      - { name: price, type: number }

	  - name: Order
	    extends: [Audited]
	    fields:
	      - { name: items,      type: Item, repeated: true, schema: { max_items: 50 } }
	      - { name: labels,     type: string, map: true }
	      - { name: placed_at,  type: datetime }
	      - { name: ref_,       type: string, wire_name: $ref }
	      - { name: note,       type: nullable_string }

	  - name: Audited
	    fields:
	      - { name: created_by, type: string, default: system }

# Field Types

A field type is one of:

  - a scalar: bool, int32, int64 (int, integer), float32, float64 (float,
    number), string (str), bytes
  - a converter: datetime, date, nullable_string, nullable_integer,
    nullable_number, nullable_boolean
  - a message: a name qualified with its package ("shop.Item"), or a bare
    name resolved within the document's package

# Loading

Load is two-phase. Every message of every document is checked and built
first, bases before the types extending them; forward and cyclic
references between fields are then resolved through the registry. Nothing
is registered when a document refers to an unknown type.
*/
package schema
